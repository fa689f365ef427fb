// Package triggers feeds expense and membership mutations to the
// notification dispatcher, either from MongoDB change streams or inline from
// the request handlers that made them.
package triggers

import (
	"context"
	"sync"

	"github.com/dalemusser/tripledger/internal/app/notify"
	"github.com/dalemusser/tripledger/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Modes accepted by the trigger_mode setting.
const (
	ModeChangeStream = "changestream"
	ModeInline       = "inline"
	ModeOff          = "off"
)

// Dispatcher is implemented by *notify.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event) (notify.Result, error)
}

// Publisher is called by handlers after a committed mutation.
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event)
}

// Noop discards events. Handlers get it when the change stream watcher is
// responsible for dispatching.
type Noop struct{}

func (Noop) Publish(context.Context, notify.Event) {}

// Inline dispatches each event on its own goroutine, detached from the
// request so a client disconnect does not cancel it.
type Inline struct {
	d   Dispatcher
	log *zap.Logger
	wg  sync.WaitGroup
}

func NewInline(d Dispatcher, log *zap.Logger) *Inline {
	return &Inline{d: d, log: log}
}

func (p *Inline) Publish(ctx context.Context, ev notify.Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Long())
		defer cancel()
		if _, err := p.d.Dispatch(dctx, ev); err != nil {
			p.log.Error("inline dispatch failed",
				zap.String("kind", string(ev.Kind)),
				zap.String("trip_id", ev.TripID()),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every published event has been dispatched.
func (p *Inline) Wait() {
	p.wg.Wait()
}
