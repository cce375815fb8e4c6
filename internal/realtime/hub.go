package realtime

import (
	"context"
	"sync"

	"github.com/nhle/taskboard/internal/logger"
)

const defaultBuffer = 64

// Hub fans published changes out to in-process subscribers. It serves the
// SQLite store directly and sits behind PGListener and the relay server.
type Hub struct {
	log    *logger.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[*hubSubscription]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:    log.Named("hub"),
		buffer: defaultBuffer,
		subs:   make(map[*hubSubscription]struct{}),
	}
}

// Publish delivers c to every matching subscriber without blocking. A
// subscriber whose buffer is full is dropped with ErrSlowConsumer.
func (h *Hub) Publish(c Change) {
	var slow []*hubSubscription

	h.mu.RLock()
	for sub := range h.subs {
		if !sub.filter.Matches(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.log.Warnw("dropping slow subscriber", "filter", sub.filter.String())
		h.remove(sub, &ChannelError{Op: "deliver", Err: ErrSlowConsumer})
	}
}

// Subscribe registers a subscriber for changes matching f.
func (h *Hub) Subscribe(ctx context.Context, f Filter) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ChannelError{Op: "subscribe", Err: err}
	}
	sub := &hubSubscription{
		hub:    h,
		filter: f,
		ch:     make(chan Change, h.buffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, &ChannelError{Op: "subscribe", Err: ErrClosed}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub, nil
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// FailAll ends every subscription with err wrapped in a ChannelError.
func (h *Hub) FailAll(err error) {
	h.mu.Lock()
	subs := make([]*hubSubscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub, &ChannelError{Op: "receive", Err: err})
	}
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.FailAll(ErrClosed)
	return nil
}

func (h *Hub) remove(sub *hubSubscription, err error) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	h.mu.Unlock()
	if ok {
		sub.finish(err)
	}
}

type hubSubscription struct {
	hub    *Hub
	filter Filter
	ch     chan Change

	once sync.Once
	mu   sync.Mutex
	err  error
}

// finish records err and closes the change stream. Only the hub calls it,
// after removing s from the subscriber set, so no send can race the close.
func (s *hubSubscription) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	})
}

func (s *hubSubscription) Changes() <-chan Change { return s.ch }

func (s *hubSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *hubSubscription) Close() error {
	s.hub.remove(s, nil)
	return nil
}
