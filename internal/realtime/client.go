package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/taskboard/internal/logger"
)

// TokenSource supplies the bearer token for a relay connection.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// APIKeyTokenSource exchanges an API key for a relay token on every call.
type APIKeyTokenSource struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// Token calls POST /v1/token with the API key.
func (s APIKeyTokenSource) Token(ctx context.Context) (string, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: handshakeTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.BaseURL, "/")+"/v1/token", nil)
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("X-API-Key", s.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("requesting token: relay returned %s", resp.Status)
	}
	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	return body.Token, nil
}

// WSChannel subscribes through a taskboard relay over websocket.
type WSChannel struct {
	baseURL string
	tokens  TokenSource
	dialer  *websocket.Dialer
	log     *logger.Logger
}

// NewWSChannel creates a channel for the relay at baseURL (http or https).
func NewWSChannel(baseURL string, tokens TokenSource, log *logger.Logger) *WSChannel {
	if log == nil {
		log = logger.Nop()
	}
	return &WSChannel{
		baseURL: baseURL,
		tokens:  tokens,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		log:     log.Named("ws"),
	}
}

// Subscribe dials the relay, sends the filter and waits for the ack.
func (c *WSChannel) Subscribe(ctx context.Context, f Filter) (Subscription, error) {
	endpoint, err := realtimeURL(c.baseURL)
	if err != nil {
		return nil, &ChannelError{Op: "subscribe", Err: err}
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &ChannelError{Op: "subscribe", Err: err}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		return nil, &ChannelError{Op: "dial", Err: err}
	}
	conn.SetReadLimit(maxFrameSize)

	if err := c.handshake(ctx, conn, f); err != nil {
		conn.Close()
		return nil, &ChannelError{Op: "subscribe", Err: err}
	}

	sub := &wsSubscription{
		conn:   conn,
		filter: f,
		ch:     make(chan Change, defaultBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		log:    c.log,
	}
	go sub.readLoop()
	return sub, nil
}

func (c *WSChannel) handshake(ctx context.Context, conn *websocket.Conn, f Filter) error {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(frame{Type: frameSubscribe, Filter: &f}); err != nil {
		return err
	}

	conn.SetReadDeadline(deadline)
	var ack frame
	if err := conn.ReadJSON(&ack); err != nil {
		return err
	}
	switch ack.Type {
	case frameSubscribed:
		return nil
	case frameError:
		return errors.New(ack.Error)
	default:
		return fmt.Errorf("unexpected %q frame", ack.Type)
	}
}

func realtimeURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing relay url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/realtime"
	return u.String(), nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	filter Filter
	ch     chan Change
	log    *logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu  sync.Mutex
	err error
}

func (s *wsSubscription) readLoop() {
	defer close(s.done)
	defer close(s.ch)

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPingHandler(func(data string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			s.fail("receive", err)
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch f.Type {
		case frameChange:
			if f.Change == nil {
				continue
			}
			select {
			case s.ch <- *f.Change:
			case <-s.stop:
				return
			}
		case frameError:
			s.fail("receive", errors.New(f.Error))
			return
		default:
			s.log.Debugw("ignoring frame", "type", f.Type)
		}
	}
}

// fail records a ChannelError unless the subscription was closed locally.
func (s *wsSubscription) fail(op string, err error) {
	select {
	case <-s.stop:
		return
	default:
	}
	s.mu.Lock()
	s.err = &ChannelError{Op: op, Err: err}
	s.mu.Unlock()
}

func (s *wsSubscription) Changes() <-chan Change { return s.ch }

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *wsSubscription) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = s.conn.Close()
		<-s.done
	})
	return err
}
