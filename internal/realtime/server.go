package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/nhle/taskboard/internal/logger"
)

// KeyVerifier resolves an API key to the user that owns it.
type KeyVerifier interface {
	VerifyAPIKey(ctx context.Context, key string) (string, error)
}

// MembershipChecker reports whether a user belongs to a workspace.
type MembershipChecker interface {
	IsWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error)
}

type subjectKey struct{}

// ServerConfig configures the relay server.
type ServerConfig struct {
	Channel Channel
	Keys    KeyVerifier
	// Members gates activity subscriptions. Nil refuses them all.
	Members  MembershipChecker
	Secret   []byte
	TokenTTL time.Duration
	Log      *logger.Logger
	Now      func() time.Time
}

// Server is the push relay: it exchanges API keys for short-lived tokens
// and streams changes from Channel to authenticated websocket clients.
type Server struct {
	cfg      ServerConfig
	log      *logger.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
}

// NewServer builds the relay and registers its routes.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	s := &Server{
		cfg:    cfg,
		log:    cfg.Log.Named("relay"),
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with a bearer token, not cookies.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/token", s.handleToken).Methods(http.MethodPost)
	s.router.Handle("/v1/realtime", s.authenticate(http.HandlerFunc(s.handleRealtime))).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if key == "" {
		writeError(w, http.StatusUnauthorized, "missing api key")
		return
	}

	userID, err := s.cfg.Keys.VerifyAPIKey(r.Context(), key)
	if err != nil {
		s.log.Infow("api key rejected", "remote", r.RemoteAddr, "error", err)
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	token, expires, err := IssueToken(s.cfg.Secret, userID, s.cfg.TokenTTL, s.cfg.Now())
	if err != nil {
		s.log.Errorw("issuing token", "error", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expires})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, err := ParseToken(s.cfg.Secret, tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(subjectKey{}).(string)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("upgrading connection", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	log := s.log.With("user_id", userID, "remote", r.RemoteAddr)

	filter, err := readSubscribe(conn)
	if err != nil {
		log.Infow("bad subscribe frame", "error", err)
		writeFrame(conn, frame{Type: frameError, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handshakeTimeout)
	if err := s.scopeFilter(ctx, &filter, userID); err != nil {
		cancel()
		log.Infow("subscription refused", "filter", filter.String(), "error", err)
		writeFrame(conn, frame{Type: frameError, Error: err.Error()})
		return
	}
	sub, err := s.cfg.Channel.Subscribe(ctx, filter)
	cancel()
	if err != nil {
		log.Warnw("subscribing", "filter", filter.String(), "error", err)
		writeFrame(conn, frame{Type: frameError, Error: "subscribe failed"})
		return
	}
	defer sub.Close()

	if err := writeFrame(conn, frame{Type: frameSubscribed, Filter: &filter}); err != nil {
		return
	}
	log.Infow("client subscribed", "filter", filter.String())

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			log.Infow("client disconnected")
			return
		case change, ok := <-sub.Changes():
			if !ok {
				msg := "subscription closed"
				if err := sub.Err(); err != nil {
					msg = err.Error()
				}
				log.Warnw("subscription ended", "error", msg)
				writeFrame(conn, frame{Type: frameError, Error: msg})
				return
			}
			if err := writeFrame(conn, frame{Type: frameChange, Change: &change}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var (
	errActivityScope = errors.New("activity subscriptions require a workspace_id filter")
	errNotMember     = errors.New("not a member of workspace")
	errUnknownTable  = errors.New("unknown table")
)

// scopeFilter pins a subscription to what the token subject may see.
// Notifications are only ever visible to their recipient; activities only
// to members of their workspace.
func (s *Server) scopeFilter(ctx context.Context, f *Filter, userID string) error {
	switch f.Table {
	case TableNotifications:
		f.Column = "user_id"
		f.Value = userID
		return nil
	case TableActivities:
		if f.Column != "workspace_id" || f.Value == "" {
			return errActivityScope
		}
		if s.cfg.Members == nil {
			return errNotMember
		}
		ok, err := s.cfg.Members.IsWorkspaceMember(ctx, f.Value, userID)
		if err != nil {
			s.log.Warnw("checking membership", "workspace_id", f.Value, "user_id", userID, "error", err)
			return errNotMember
		}
		if !ok {
			return errNotMember
		}
		return nil
	default:
		return errUnknownTable
	}
}

func readSubscribe(conn *websocket.Conn) (Filter, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		return Filter{}, err
	}
	if f.Type != frameSubscribe || f.Filter == nil {
		return Filter{}, errors.New("expected subscribe frame")
	}
	if f.Filter.Table == "" {
		return Filter{}, errors.New("filter table is required")
	}
	return *f.Filter, nil
}

func writeFrame(conn *websocket.Conn, f frame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
