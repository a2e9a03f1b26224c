// Package realtime runs live queries over Mongo change streams. A single
// Manager owns every listener, keyed so that re-subscribing with the same
// key replaces the previous listener instead of stacking another one.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/metrics"
	"gawangliliw/sellerhub/internal/utils"
)

var ErrClosed = errors.New("realtime manager closed")

// Kind is the change applied to a document.
type Kind string

const (
	Added    Kind = "added"
	Modified Kind = "modified"
	Removed  Kind = "removed"
)

// KindOf maps a change stream operationType; unknown types report false.
func KindOf(op string) (Kind, bool) {
	switch op {
	case "insert":
		return Added, true
	case "update", "replace":
		return Modified, true
	case "delete":
		return Removed, true
	}
	return "", false
}

// Event is one change delivered to a subscriber. Doc is empty for Removed.
type Event struct {
	Kind Kind
	ID   utils.SixID
	Doc  bson.Raw
}

// DecodeDoc unmarshals the full document into v.
func (e Event) DecodeDoc(v interface{}) error {
	if len(e.Doc) == 0 {
		return fmt.Errorf("event %s for %s has no document", e.Kind, e.ID)
	}
	return bson.Unmarshal(e.Doc, v)
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID utils.SixID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.RawValue `bson:"fullDocument"`
}

func (ce *changeEvent) doc() bson.Raw {
	if ce.FullDocument.Type != bsontype.EmbeddedDocument {
		return nil
	}
	return ce.FullDocument.Document()
}

// Handler receives events in stream order on the subscription's goroutine.
// ctx ends when the subscription is cancelled; handlers that block must
// select on it.
type Handler func(ctx context.Context, ev Event)

// Subscription is a running listener.
type Subscription struct {
	key    string
	coll   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed once the listener has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err is the stream error that ended the listener, if any. Valid after Done.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

// Cancel stops the listener and waits for it to finish.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Manager owns every live subscription of the process.
type Manager struct {
	src     Source
	metrics *metrics.Metrics

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

func NewManager(src Source, m *metrics.Metrics) *Manager {
	return &Manager{src: src, metrics: m, subs: make(map[string]*Subscription)}
}

// Subscribe opens q and delivers its events to h until ctx ends, the key is
// re-subscribed, Unsubscribe or Close is called, or the stream fails.
func (m *Manager) Subscribe(ctx context.Context, key string, q Query, h Handler) (*Subscription, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	old := m.subs[key]
	m.mu.Unlock()
	if old != nil {
		old.Cancel()
		logger.Log.Debug("subscription_replaced", zap.String("key", key))
	}

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := m.src.Watch(subCtx, q)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &Subscription{key: key, coll: q.Collection, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		_ = stream.Close(context.Background())
		return nil, ErrClosed
	}
	// A concurrent Subscribe on the same key may have won the race.
	if other := m.subs[key]; other != nil {
		other.cancel()
	}
	m.subs[key] = sub
	m.mu.Unlock()

	m.gauge(q.Collection, 1)
	go m.run(subCtx, sub, stream, h)
	return sub, nil
}

func (m *Manager) run(ctx context.Context, sub *Subscription, stream Stream, h Handler) {
	defer func() {
		_ = stream.Close(context.Background())
		m.mu.Lock()
		if m.subs[sub.key] == sub {
			delete(m.subs, sub.key)
		}
		m.mu.Unlock()
		m.gauge(sub.coll, -1)
		close(sub.done)
	}()

	for stream.Next(ctx) {
		var ce changeEvent
		if err := stream.Decode(&ce); err != nil {
			logger.Log.Warn("change_event_decode_failed", zap.String("key", sub.key), zap.Error(err))
			continue
		}
		kind, ok := KindOf(ce.OperationType)
		if !ok {
			continue
		}
		if m.metrics != nil {
			m.metrics.RealtimeEvents.WithLabelValues(sub.coll, string(kind)).Inc()
		}
		h(ctx, Event{Kind: kind, ID: ce.DocumentKey.ID, Doc: ce.doc()})
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		sub.err = err
		logger.Log.Warn("change_stream_failed", zap.String("key", sub.key), zap.Error(err))
	}
}

func (m *Manager) gauge(coll string, delta float64) {
	if m.metrics != nil {
		m.metrics.ActiveSubscriptions.WithLabelValues(coll).Add(delta)
	}
}

// Unsubscribe stops the listener registered under key, if any.
func (m *Manager) Unsubscribe(key string) {
	m.mu.Lock()
	sub := m.subs[key]
	m.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// Len is the number of running listeners.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close stops every listener and refuses new ones.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	subs := make([]*Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	logger.Log.Info("realtime_closed", zap.Int("subscriptions", len(subs)))
}
