package triggers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/tripledger/internal/app/system/metrics"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Checkpoints persists resume tokens between restarts.
type Checkpoints interface {
	Load(ctx context.Context, name string) (bson.Raw, error)
	Save(ctx context.Context, name string, token bson.Raw) error
	Clear(ctx context.Context, name string) error
}

// retryDelay is the pause before reopening a failed change stream.
const retryDelay = 5 * time.Second

// Watcher tails the expenses and trip_members change streams and dispatches
// each relevant change. Events are handled one at a time per collection and
// the resume token is saved after each, so delivery is at least once.
// Requires a replica set; pre-images must be enabled for delete events.
type Watcher struct {
	db  *mongo.Database
	cp  Checkpoints
	d   Dispatcher
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatcher(db *mongo.Database, cp Checkpoints, d Dispatcher, log *zap.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{db: db, cp: cp, d: d, log: log, ctx: ctx, cancel: cancel}
}

// Start opens one stream per watched collection.
func (w *Watcher) Start() {
	for _, coll := range []string{ExpensesCollection, TripMembersCollection} {
		w.wg.Add(1)
		go w.run(coll)
	}
	w.log.Info("trigger watcher started")
}

// Stop closes the streams and waits for in-flight dispatches to finish.
func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
	w.log.Info("trigger watcher stopped")
}

func (w *Watcher) run(coll string) {
	defer w.wg.Done()
	log := w.log.With(zap.String("collection", coll))

	for {
		err := w.stream(coll, log)
		if w.ctx.Err() != nil {
			return
		}
		log.Error("change stream closed, reopening", zap.Duration("in", retryDelay), zap.Error(err))
		select {
		case <-w.ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func checkpointName(coll string) string { return "notify:" + coll }

func (w *Watcher) stream(coll string, log *zap.Logger) error {
	name := checkpointName(coll)

	lctx, cancel := context.WithTimeout(w.ctx, timeouts.Short())
	token, err := w.cp.Load(lctx, name)
	cancel()
	if err != nil {
		return err
	}

	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	if token != nil {
		opts.SetStartAfter(token)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}}}}},
	}

	cs, err := w.db.Collection(coll).Watch(w.ctx, pipeline, opts)
	if err != nil {
		if token != nil && historyLost(err) {
			log.Warn("resume point no longer available, restarting from now", zap.Error(err))
			cctx, cancel := context.WithTimeout(w.ctx, timeouts.Short())
			defer cancel()
			if cerr := w.cp.Clear(cctx, name); cerr != nil {
				return cerr
			}
		}
		return err
	}
	defer cs.Close(context.Background())
	log.Info("change stream open", zap.Bool("resumed", token != nil))

	for cs.Next(w.ctx) {
		var c changeEvent
		if err := cs.Decode(&c); err != nil {
			log.Error("undecodable change event", zap.Error(err))
		} else {
			w.handle(coll, c, log)
		}

		sctx, cancel := context.WithTimeout(w.ctx, timeouts.Short())
		if err := w.cp.Save(sctx, name, cs.ResumeToken()); err != nil {
			log.Warn("save resume token failed", zap.Error(err))
		}
		cancel()
	}
	return cs.Err()
}

func (w *Watcher) handle(coll string, c changeEvent, log *zap.Logger) {
	metrics.TriggerEvents.WithLabelValues(coll, c.OperationType).Inc()

	ev, skip := toEvent(coll, c)
	switch skip {
	case skipNone:
	case skipIgnored:
		return
	default:
		metrics.DispatchAborted.WithLabelValues(string(skip)).Inc()
		log.Warn("change event dropped", zap.String("operation", c.OperationType), zap.String("reason", string(skip)))
		return
	}

	// Dispatch outlives shutdown cancellation so a started fan-out completes.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), timeouts.Long())
	defer cancel()
	if _, err := w.d.Dispatch(ctx, ev); err != nil {
		log.Error("dispatch failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("trip_id", ev.TripID()),
			zap.Error(err))
	}
}

// historyLost reports whether the saved resume token fell off the oplog.
func historyLost(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(286) || se.HasErrorCode(280) // ChangeStreamHistoryLost, ChangeStreamFatalError
	}
	return false
}
