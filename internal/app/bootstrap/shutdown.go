// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work before closing connections: jobs and the
// change stream first, then pending inline dispatches, then the live feed,
// Redis and MongoDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if s := svc; s != nil {
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		if s.watcher != nil {
			s.watcher.Stop()
		}
		if s.inline != nil {
			s.inline.Wait()
		}
		if s.signInLimiter != nil {
			s.signInLimiter.Stop()
		}
		if s.hub != nil {
			if err := s.hub.Close(); err != nil {
				logger.Warn("closing notification feed", zap.Error(err))
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				logger.Warn("closing Redis client", zap.Error(err))
			}
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
