package notify

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	n := New()
	defer n.Close()

	a, err := n.Subscribe(4)
	require.NoError(t, err)
	b, err := n.Subscribe(4)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	ev := n.Publish(Event{Kind: Enabled, Summary: "on"})
	assert.Equal(t, uint64(1), ev.Seq)
	assert.Equal(t, Info, ev.Severity)
	assert.False(t, ev.Time.IsZero())

	for _, s := range []Subscription{a, b} {
		select {
		case got := <-s.C:
			assert.Equal(t, Enabled, got.Kind)
			assert.Equal(t, uint64(1), got.Seq)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestDeliveryFollowsPublishOrder(t *testing.T) {
	n := New()
	defer n.Close()
	s, err := n.Subscribe(64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				n.Publish(Event{Kind: ModeChanged})
			}
		}()
	}
	wg.Wait()

	var last uint64
	for i := 0; i < 40; i++ {
		ev := <-s.C
		assert.Equal(t, last+1, ev.Seq)
		last = ev.Seq
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	n := New()
	defer n.Close()
	s, err := n.Subscribe(1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		n.Publish(Event{Kind: AnimationStarted})
		n.Publish(Event{Kind: AnimationDone})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Equal(t, AnimationStarted, (<-s.C).Kind)
	select {
	case ev := <-s.C:
		t.Fatalf("dropped event delivered: %+v", ev)
	default:
	}

	st := n.Stats()
	assert.Equal(t, uint64(2), st.Published)
	assert.Equal(t, uint64(1), st.Sent)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, SubscriberStats{Sent: 1, Dropped: 1}, st.Subscribers[s.ID])
}

func TestDroppedErrorsAreLogged(t *testing.T) {
	var out bytes.Buffer
	n := NewWithLogger(zerolog.New(&out).Level(zerolog.InfoLevel))
	defer n.Close()
	_, err := n.Subscribe(1)
	require.NoError(t, err)

	n.Publish(Event{Kind: AnimationStarted})
	n.Publish(Event{Kind: ModeChanged})
	assert.Empty(t, out.String(), "info drops stay at debug")

	n.Publish(Event{Kind: AnimationFailed, Severity: Err, Summary: "animation halted", Detail: "boom"})
	n.Publish(Event{Kind: AnimationDone})
	logged := out.String()
	assert.Contains(t, logged, `"level":"warn"`)
	assert.Contains(t, logged, `"kind":"animation_error"`)
	assert.Contains(t, logged, `"detail":"boom"`)
	assert.Contains(t, logged, `"kind":"animation_completed"`)
	assert.Equal(t, uint64(3), n.Stats().Dropped)
}

func TestUnsubscribe(t *testing.T) {
	n := New()
	s, err := n.Subscribe(0)
	require.NoError(t, err)
	require.NoError(t, n.Unsubscribe(s.ID))

	_, open := <-s.C
	assert.False(t, open)

	err = n.Unsubscribe(uuid.New())
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestClose(t *testing.T) {
	n := New()
	s, _ := n.Subscribe(2)
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	_, open := <-s.C
	assert.False(t, open)

	n.Publish(Event{Kind: Enabled})
	_, err := n.Subscribe(1)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))
}
