package model

import "time"

// Preferences holds a user's dashboard preferences.
type Preferences struct {
	UserID             string    `json:"user_id" db:"user_id"`
	Theme              string    `json:"theme" db:"theme"`
	EmailNotifications bool      `json:"email_notifications" db:"email_notifications"`
	DigestFrequency    string    `json:"digest_frequency" db:"digest_frequency"`
	FeedLimit          int       `json:"feed_limit" db:"feed_limit"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Widget is one dashboard widget slot.
type Widget struct {
	ID       string `json:"id" db:"id"`
	UserID   string `json:"user_id" db:"user_id"`
	Kind     string `json:"kind" db:"kind"`
	Position int    `json:"position" db:"position"`
	Visible  bool   `json:"visible" db:"visible"`
}

// Widget kinds created for new users.
const (
	WidgetStats           = "stats"
	WidgetActivityFeed    = "activity_feed"
	WidgetTeamPerformance = "team_performance"
	WidgetProjects        = "projects"
)

// APIKey is the stored form of an issued API key. The plaintext key is
// never persisted.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Name       string     `json:"name" db:"name"`
	Prefix     string     `json:"prefix" db:"prefix"`
	Salt       string     `json:"-" db:"salt"`
	Hash       string     `json:"-" db:"hash"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}
