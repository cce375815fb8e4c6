package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nhle/taskboard/internal/apikey"
	"github.com/nhle/taskboard/internal/model"
)

// defaultWidgets is the widget layout given to new users.
var defaultWidgets = []string{
	model.WidgetStats,
	model.WidgetActivityFeed,
	model.WidgetTeamPerformance,
	model.WidgetProjects,
}

// CreateDefaultPreferences creates the default preferences row for userID
// if none exists and returns the stored row.
func (s *SQLStore) CreateDefaultPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO preferences (user_id, theme, email_notifications, digest_frequency, feed_limit, created_at)
		VALUES (?, 'system', 1, 'daily', 50, ?)
		ON CONFLICT (user_id) DO NOTHING`),
		userID, s.now().UTC(),
	)
	if err != nil {
		return nil, mutationErr("creating default preferences", err)
	}

	var prefs model.Preferences
	err = s.db.GetContext(ctx, &prefs, s.db.Rebind("SELECT * FROM preferences WHERE user_id = ?"), userID)
	if err != nil {
		return nil, queryErr("reading preferences", err)
	}
	return &prefs, nil
}

// CreateDefaultWidgets creates any missing default widgets for userID and
// returns the user's widgets in position order.
func (s *SQLStore) CreateDefaultWidgets(ctx context.Context, userID string) ([]model.Widget, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, mutationErr("beginning widget transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, s.db.Rebind(`
		INSERT INTO widgets (id, user_id, kind, position, visible)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (user_id, kind) DO NOTHING`))
	if err != nil {
		return nil, mutationErr("preparing widget insert", err)
	}
	defer stmt.Close()

	for i, kind := range defaultWidgets {
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), userID, kind, i); err != nil {
			return nil, mutationErr("creating widget "+kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, mutationErr("committing widgets", err)
	}

	var widgets []model.Widget
	err = s.db.SelectContext(ctx, &widgets,
		s.db.Rebind("SELECT * FROM widgets WHERE user_id = ? ORDER BY position"), userID)
	if err != nil {
		return nil, queryErr("reading widgets", err)
	}
	return widgets, nil
}

// GenerateAPIKey issues a new API key for userID. Only a salted hash is
// stored; the returned plaintext cannot be recovered later.
func (s *SQLStore) GenerateAPIKey(ctx context.Context, userID, name string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id must not be empty")
	}
	if name == "" {
		name = "default"
	}

	key, err := apikey.Generate()
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO api_keys (id, user_id, name, prefix, salt, hash, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`),
		uuid.New().String(), userID, name, key.Lookup, key.Salt, key.Hash, s.now().UTC(),
	)
	if err != nil {
		return "", mutationErr("storing api key", err)
	}
	return key.Plaintext, nil
}

// VerifyAPIKey resolves the user owning key and stamps last_used_at.
func (s *SQLStore) VerifyAPIKey(ctx context.Context, key string) (string, error) {
	lookup, err := apikey.LookupOf(key)
	if err != nil {
		return "", ErrInvalidAPIKey
	}

	var stored model.APIKey
	err = s.db.GetContext(ctx, &stored, s.db.Rebind("SELECT * FROM api_keys WHERE prefix = ?"), lookup)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidAPIKey
	}
	if err != nil {
		return "", queryErr("reading api key", err)
	}
	if !apikey.Verify(key, stored.Salt, stored.Hash) {
		return "", ErrInvalidAPIKey
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind("UPDATE api_keys SET last_used_at = ? WHERE id = ?"),
		s.now().UTC(), stored.ID)
	if err != nil {
		return "", mutationErr("stamping api key", err)
	}
	return stored.UserID, nil
}
