package store

import "strings"

// migration holds a single schema migration with its target version and SQL.
// A non-empty driver restricts the migration to that driver.
type migration struct {
	version int
	driver  string
	sql     string
}

// renderDDL substitutes driver-specific column types. Postgres gets
// timezone-aware timestamps so NOTIFY payloads carry RFC 3339 times.
func renderDDL(sql, driver string) string {
	ts := "TIMESTAMP"
	if driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}
	return strings.ReplaceAll(sql, "{{ts}}", ts)
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS activities (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	actor_id     TEXT NOT NULL,
	actor_name   TEXT NOT NULL DEFAULT '',
	action       TEXT NOT NULL,
	entity_type  TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	entity_name  TEXT NOT NULL DEFAULT '',
	details      TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	created_at   {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	workspace_id TEXT NOT NULL DEFAULT '',
	type         TEXT NOT NULL,
	title        TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	read         INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	read_at      {{ts}},
	related_type TEXT NOT NULL DEFAULT '',
	related_id   TEXT NOT NULL DEFAULT '',
	details      TEXT NOT NULL DEFAULT '',
	created_at   {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_workspace_created
	ON activities(workspace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user_read
	ON notifications(user_id, read);
CREATE INDEX IF NOT EXISTS idx_notifications_created
	ON notifications(created_at);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS members (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	email        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'archived', 'completed')),
	created_at   {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	workspace_id TEXT NOT NULL,
	title        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'todo' CHECK(status IN ('todo', 'in_progress', 'review', 'done')),
	assignee_id  TEXT,
	due_date     {{ts}},
	completed_at {{ts}},
	created_at   {{ts}} NOT NULL,
	updated_at   {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS project_members (
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	member_id  TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT 'member',
	PRIMARY KEY (project_id, member_id)
);

CREATE INDEX IF NOT EXISTS idx_members_workspace ON members(workspace_id);
CREATE INDEX IF NOT EXISTS idx_projects_workspace ON projects(workspace_id);
CREATE INDEX IF NOT EXISTS idx_tasks_workspace ON tasks(workspace_id);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS preferences (
	user_id             TEXT PRIMARY KEY,
	theme               TEXT NOT NULL DEFAULT 'system',
	email_notifications INTEGER NOT NULL DEFAULT 1,
	digest_frequency    TEXT NOT NULL DEFAULT 'daily',
	feed_limit          INTEGER NOT NULL DEFAULT 50,
	created_at          {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS widgets (
	id       TEXT PRIMARY KEY,
	user_id  TEXT NOT NULL,
	kind     TEXT NOT NULL,
	position INTEGER NOT NULL,
	visible  INTEGER NOT NULL DEFAULT 1,
	UNIQUE(user_id, kind)
);

CREATE TABLE IF NOT EXISTS api_keys (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	name         TEXT NOT NULL,
	prefix       TEXT NOT NULL UNIQUE,
	salt         TEXT NOT NULL,
	hash         TEXT NOT NULL,
	created_at   {{ts}} NOT NULL,
	last_used_at {{ts}}
);

CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id);
`,
	},
	{
		version: 4,
		driver:  DriverPostgres,
		sql: `
CREATE OR REPLACE FUNCTION taskboard_notify_activity() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('taskboard_changes', json_build_object(
		'table', TG_TABLE_NAME,
		'event', TG_OP,
		'record', json_build_object(
			'id', NEW.id,
			'workspace_id', NEW.workspace_id,
			'actor_id', NEW.actor_id,
			'actor_name', NEW.actor_name,
			'action', NEW.action,
			'entity_type', NEW.entity_type,
			'entity_id', NEW.entity_id,
			'entity_name', NEW.entity_name,
			'description', NEW.description,
			'details', NULLIF(NEW.details, '')::json,
			'created_at', NEW.created_at
		)
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION taskboard_notify_notification() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('taskboard_changes', json_build_object(
		'table', TG_TABLE_NAME,
		'event', TG_OP,
		'record', json_build_object(
			'id', NEW.id,
			'user_id', NEW.user_id,
			'workspace_id', NEW.workspace_id,
			'type', NEW.type,
			'title', NEW.title,
			'message', NEW.message,
			'read', NEW.read <> 0,
			'read_at', NEW.read_at,
			'related_type', NEW.related_type,
			'related_id', NEW.related_id,
			'details', NULLIF(NEW.details, '')::json,
			'created_at', NEW.created_at
		)
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS activities_notify ON activities;
CREATE TRIGGER activities_notify AFTER INSERT ON activities
	FOR EACH ROW EXECUTE FUNCTION taskboard_notify_activity();

DROP TRIGGER IF EXISTS notifications_notify ON notifications;
CREATE TRIGGER notifications_notify AFTER INSERT ON notifications
	FOR EACH ROW EXECUTE FUNCTION taskboard_notify_notification();
`,
	},
}
