package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hooklinehq/hookline/internal/dispatcher"
	"github.com/hooklinehq/hookline/internal/kafka"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/model"
	"go.uber.org/zap"
)

// Consumer is the slice of the kafka consumer the worker needs. Satisfied by
// *kafka.Consumer.
type Consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// DispatchKafka consumes emitted-event envelopes and runs the delivery
// pipeline for each: match, filter, sign, deliver, record.
type DispatchKafka struct {
	Consumer   Consumer
	Dispatcher *dispatcher.Dispatcher
	Workers    int // goroutines consuming envelopes
	Log        *zap.Logger
}

func NewDispatchKafka(consumer Consumer, disp *dispatcher.Dispatcher, log *zap.Logger) *DispatchKafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &DispatchKafka{
		Consumer:   consumer,
		Dispatcher: disp,
		Workers:    32,
		Log:        log,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *DispatchKafka) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 32
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				m, err := w.Consumer.Fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					w.Log.Error("kafka fetch failed", zap.Error(err))
					time.Sleep(200 * time.Millisecond)
					continue
				}
				select {
				case msgCh <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	// Processors
	for i := 0; i < w.Workers; i++ {
		go w.runProcessor(ctx, msgCh)
	}

	<-ctx.Done()
	return nil
}

func (w *DispatchKafka) runProcessor(ctx context.Context, in <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.processOne(ctx, m)
		}
	}
}

func (w *DispatchKafka) processOne(ctx context.Context, m kafka.Message) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.ID == "" {
		// poison message: commit and move on
		_ = w.Consumer.Commit(ctx, m)
		if err != nil {
			w.Log.Warn("bad envelope json", zap.Error(err))
		} else {
			w.Log.Warn("envelope missing id")
		}
		return
	}

	metrics.EventsTotal.WithLabelValues(env.Event.SourceApp).Inc()

	// DispatchEvent contains its own failures; nothing here aborts the
	// consumer loop.
	w.Dispatcher.DispatchEvent(ctx, env.Event)

	// Always commit (at-least-once; the unique (subscription, event) delivery
	// row absorbs redelivered envelopes).
	if err := w.Consumer.Commit(ctx, m); err != nil {
		w.Log.Error("kafka commit failed", zap.Error(err))
	}
}
