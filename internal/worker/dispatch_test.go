package worker

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/hooklinehq/hookline/internal/dispatcher"
	"github.com/hooklinehq/hookline/internal/kafka"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noSubsResolver struct{}

func (noSubsResolver) Resolve(context.Context, model.WebhookEvent) ([]model.WebhookSubscription, error) {
	return nil, nil
}

// fakeConsumer serves queued messages, or the same message forever when loop
// is set. An empty queue blocks like a real fetch until ctx is cancelled.
type fakeConsumer struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	loop    *kafka.Message
	commits int
}

func (f *fakeConsumer) Fetch(ctx context.Context) (kafka.Message, error) {
	if ctx.Err() != nil {
		return kafka.Message{}, ctx.Err()
	}
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	if f.loop != nil {
		return *f.loop, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeConsumer) Commit(_ context.Context, _ kafka.Message) error {
	f.mu.Lock()
	f.commits++
	f.mu.Unlock()
	return nil
}

func (f *fakeConsumer) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

func runWorker(t *testing.T, w *DispatchKafka) (cancel context.CancelFunc, done chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	return cancel, done
}

func newTestWorker(consumer Consumer) *DispatchKafka {
	disp := dispatcher.New(noSubsResolver{}, nil, nil, time.Second, nil)
	w := NewDispatchKafka(consumer, disp, nil)
	w.Workers = 1
	return w
}

func TestDispatchKafkaCommitsEnvelopes(t *testing.T) {
	fc := &fakeConsumer{msgs: []kafka.Message{
		{Value: []byte(`{"id":"evt1","tenant_id":"t1","event":{"id":"evt1","event_type":"order.created","tenant_id":"t1"}}`)},
		{Value: []byte(`not json at all`)}, // poison: committed and skipped
		{Value: []byte(`{"id":"","event":{}}`)},
	}}

	cancel, done := runWorker(t, newTestWorker(fc))
	defer cancel()

	require.Eventually(t, func() bool { return fc.commitCount() == 3 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestDispatchKafkaStopsCleanlyUnderLoad(t *testing.T) {
	// A firehose consumer keeps the fetcher's channel full. Cancelling must
	// unwind every goroutine, including a fetcher mid-send after the
	// processors have already exited.
	msg := kafka.Message{Value: []byte(`{"id":"evt1","tenant_id":"t1","event":{"id":"evt1","event_type":"order.created","tenant_id":"t1"}}`)}
	fc := &fakeConsumer{loop: &msg}

	base := runtime.NumGoroutine()

	cancel, done := runWorker(t, newTestWorker(fc))

	require.Eventually(t, func() bool { return fc.commitCount() > 0 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= base+1 },
		2*time.Second, 20*time.Millisecond, "worker goroutines leaked after shutdown")
}
