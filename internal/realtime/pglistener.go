package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/nhle/taskboard/internal/logger"
)

// DefaultPGChannel is the NOTIFY channel the store's triggers publish on.
const DefaultPGChannel = "taskboard_changes"

const (
	minReconnectInterval = 2 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// PGListener bridges Postgres LISTEN/NOTIFY into a Hub. Every NOTIFY
// payload must be a JSON-encoded Change.
//
// When the connection drops and pq reconnects, notifications sent in
// between are lost. The listener then fails every open subscription with
// ErrConnectionLost so callers refetch instead of running on a gapped
// mirror.
type PGListener struct {
	hub      *Hub
	listener *pq.Listener
	log      *logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewPGListener connects to dsn and listens on channel.
func NewPGListener(dsn, channel string, log *logger.Logger) (*PGListener, error) {
	if log == nil {
		log = logger.Nop()
	}
	if channel == "" {
		channel = DefaultPGChannel
	}
	log = log.Named("pglistener")

	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Warnw("listener event", "event", listenerEventName(ev), "error", err)
			}
		})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listening on %s: %w", channel, err)
	}

	l := &PGListener{
		hub:      NewHub(log),
		listener: listener,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Subscribe opens a subscription for changes matching f.
func (l *PGListener) Subscribe(ctx context.Context, f Filter) (Subscription, error) {
	return l.hub.Subscribe(ctx, f)
}

// Close stops listening and ends every subscription.
func (l *PGListener) Close() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.stop)
		err = l.listener.Close()
		<-l.done
		l.hub.Close()
	})
	return err
}

func (l *PGListener) run() {
	defer close(l.done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}
			// pq sends nil after re-establishing the connection.
			if n == nil {
				l.log.Warnw("connection re-established, failing subscriptions")
				l.hub.FailAll(ErrConnectionLost)
				continue
			}
			l.dispatch(n.Extra)
		case <-ticker.C:
			if err := l.listener.Ping(); err != nil {
				l.log.Warnw("ping failed", "error", err)
			}
		}
	}
}

func (l *PGListener) dispatch(payload string) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		l.log.Warnw("discarding malformed notification", "error", err)
		return
	}
	l.hub.Publish(c)
}

func listenerEventName(ev pq.ListenerEventType) string {
	switch ev {
	case pq.ListenerEventConnected:
		return "connected"
	case pq.ListenerEventDisconnected:
		return "disconnected"
	case pq.ListenerEventReconnected:
		return "reconnected"
	case pq.ListenerEventConnectionAttemptFailed:
		return "connection_attempt_failed"
	default:
		return "unknown"
	}
}
