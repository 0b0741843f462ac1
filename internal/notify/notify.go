// Package notify fans lifecycle events out to subscribers.
//
// Each subscriber owns a buffered channel. Publish never blocks: an event is
// delivered to a subscriber at most once and dropped for that subscriber if
// its channel is full. Events reach every subscriber in publish order.
// Every drop is counted in Stats; dropped errors and completions are also
// logged at Warn.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Kind string

const (
	Initialized       Kind = "initialized"
	Deinitialized     Kind = "deinitialized"
	Enabled           Kind = "enabled"
	Disabled          Kind = "disabled"
	ModeChanged       Kind = "mode_changed"
	BrightnessChanged Kind = "brightness_changed"
	ConfigChanged     Kind = "config_changed"
	AnimationStarted  Kind = "animation_started"
	AnimationStopped  Kind = "animation_stopped"
	AnimationDone     Kind = "animation_completed"
	AnimationFailed   Kind = "animation_error"
	RefreshFailed     Kind = "refresh_error"
)

// Event is one notification. Seq is assigned by the notifier and increases
// by one per publish.
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	Summary   string    `json:"summary"`
	Detail    string    `json:"detail,omitempty"`
	Animation string    `json:"animation,omitempty"`
	Time      time.Time `json:"time"`
}

const DFLT_BUFFER = 16

type Subscription struct {
	ID uuid.UUID
	C  <-chan Event
}

type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type Stats struct {
	Published   uint64
	Sent        uint64
	Dropped     uint64
	Subscribers map[uuid.UUID]SubscriberStats
}

type subscriber struct {
	id      uuid.UUID
	ch      chan Event
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Notifier is safe for concurrent use.
type Notifier struct {
	log    zerolog.Logger
	mu     sync.Mutex
	subs   []*subscriber
	seq    uint64
	closed bool
}

func New() *Notifier {
	return NewWithLogger(zerolog.Nop())
}

// NewWithLogger reports dropped events on log.
func NewWithLogger(log zerolog.Logger) *Notifier {
	return &Notifier{log: log.With().Str("component", "notify").Logger()}
}

// Subscribe registers a new subscriber whose channel holds up to buf pending
// events (DFLT_BUFFER when buf <= 0).
func (n *Notifier) Subscribe(buf int) (Subscription, error) {
	if buf <= 0 {
		buf = DFLT_BUFFER
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return Subscription{}, errs.E(errs.InvalidState, "Subscribe", "notifier closed")
	}
	s := &subscriber{id: uuid.New(), ch: make(chan Event, buf)}
	n.subs = append(n.subs, s)
	return Subscription{ID: s.id, C: s.ch}, nil
}

// Unsubscribe removes the subscriber and closes its channel.
func (n *Notifier) Unsubscribe(id uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			close(s.ch)
			return nil
		}
	}
	return errs.E(errs.NotFound, "Unsubscribe", "subscriber %s", id)
}

// Publish stamps ev and offers it to every subscriber. Publishing on a
// closed notifier is a no-op.
func (n *Notifier) Publish(ev Event) Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ev
	}
	n.seq++
	ev.Seq = n.seq
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Severity == "" {
		ev.Severity = Info
	}
	for _, s := range n.subs {
		select {
		case s.ch <- ev:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
			n.dropped(s, ev)
		}
	}
	return ev
}

func (n *Notifier) dropped(s *subscriber, ev Event) {
	e := n.log.Debug()
	if ev.Severity == Err || ev.Kind == AnimationDone {
		e = n.log.Warn()
	}
	e.Str("subscriber", s.id.String()).Uint64("seq", ev.Seq).Str("kind", string(ev.Kind)).
		Str("summary", ev.Summary).Str("detail", ev.Detail).Msg("event dropped, subscriber full")
}

func (n *Notifier) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	st := Stats{
		Published:   n.seq,
		Subscribers: make(map[uuid.UUID]SubscriberStats, len(n.subs)),
	}
	for _, s := range n.subs {
		ss := SubscriberStats{Sent: s.sent.Load(), Dropped: s.dropped.Load()}
		st.Sent += ss.Sent
		st.Dropped += ss.Dropped
		st.Subscribers[s.id] = ss
	}
	return st
}

// Close drops every subscriber and closes their channels. It is idempotent.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	for _, s := range n.subs {
		close(s.ch)
	}
	n.subs = nil
	return nil
}
