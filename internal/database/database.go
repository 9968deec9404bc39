package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

func NewDB(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	slog.Info("Running database migrations")

	migrations := []string{
		createUsersTable,
		createReferralsTable,
		createRotationEventsTable,
		createRotationStateTable,
		createAdminsTable,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	slog.Info("Database migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT,
	username TEXT,
	chat_id INTEGER NOT NULL,
	lifetime_generations INTEGER NOT NULL DEFAULT 0,
	today_generations INTEGER NOT NULL DEFAULT 0,
	day_window_start INTEGER NOT NULL DEFAULT 0,
	referral_credits INTEGER NOT NULL DEFAULT 0,
	verified BOOLEAN NOT NULL DEFAULT false,
	pending_verification_message_id INTEGER NOT NULL DEFAULT 0,
	verification_sent_at INTEGER NOT NULL DEFAULT 0,
	referred_by INTEGER NOT NULL DEFAULT 0,
	invited_count INTEGER NOT NULL DEFAULT 0,
	invite_code TEXT NOT NULL DEFAULT '',
	created_at INTEGER DEFAULT (strftime('%s', 'now')),
	updated_at INTEGER DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_users_invite_code ON users(invite_code);
CREATE INDEX IF NOT EXISTS idx_users_verification_sent_at ON users(verification_sent_at);`

const createReferralsTable = `
CREATE TABLE IF NOT EXISTS referrals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	inviter_id INTEGER NOT NULL,
	invited_id INTEGER NOT NULL UNIQUE,
	acknowledged BOOLEAN NOT NULL DEFAULT false,
	created_at INTEGER DEFAULT (strftime('%s', 'now')),
	ack_at INTEGER,
	FOREIGN KEY (inviter_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_referrals_inviter ON referrals(inviter_id, acknowledged);`

const createRotationEventsTable = `
CREATE TABLE IF NOT EXISTS rotation_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rotation_events_ts ON rotation_events(ts);`

const createRotationStateTable = `
CREATE TABLE IF NOT EXISTS rotation_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	active_index INTEGER NOT NULL DEFAULT 0,
	since_rotation INTEGER NOT NULL DEFAULT 0,
	exhausted BOOLEAN NOT NULL DEFAULT false,
	updated_at INTEGER DEFAULT (strftime('%s', 'now'))
);`

const createAdminsTable = `
CREATE TABLE IF NOT EXISTS admins (
	user_id INTEGER PRIMARY KEY,
	display_name TEXT NOT NULL,
	authenticated_at INTEGER NOT NULL
);`
