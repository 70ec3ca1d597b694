package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models/events"
)

func drain(s *Subscription) int {
	n := 0
	for {
		select {
		case <-s.C:
			n++
		default:
			return n
		}
	}
}

func TestNotifyReachesEverySubscriber(t *testing.T) {
	h := NewHub(4)
	a, b := h.Subscribe(), h.Subscribe()
	defer a.Close()
	defer b.Close()

	h.Notify()
	h.Notify()

	assert.Equal(t, 2, drain(a))
	assert.Equal(t, 2, drain(b))
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe()
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Notify()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full subscriber")
	}
	assert.Equal(t, 1, drain(s))
}

func TestCloseUnsubscribes(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe()
	require.Equal(t, 1, h.Subscribers())

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Subscribers())

	_, ok := <-s.C
	assert.False(t, ok)
	h.Notify()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	fail   bool
}

func (p *recordingPublisher) Publish(ctx context.Context, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	if p.fail {
		return errors.New("broker down")
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestRelayPublishesEachSignal(t *testing.T) {
	h := NewHub(4)
	pub := &recordingPublisher{fail: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Relay(ctx, h, pub, zap.NewNop())
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	h.Notify()
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	h.Notify()
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	ev, ok := pub.events[0].(events.DataChanged)
	pub.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, events.TypeDataChanged, ev.Type)

	cancel()
	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}
