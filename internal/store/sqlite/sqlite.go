package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chatbuddy/chatbot-backend/internal/model"
	"github.com/chatbuddy/chatbot-backend/internal/store"
)

// Open opens (or creates) a SQLite database at the given path and enables WAL
// journal mode. Pass ":memory:" for an in-memory database (used by tests and
// local development without a file).
func Open(path string) (*sql.DB, error) {
	var dsn string
	if path == ":memory:" {
		// cache=shared keeps every pooled connection on the same database
		dsn = "file::memory:?cache=shared&_pragma=foreign_keys(ON)"
	} else {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers; a single pooled connection avoids
	// SQLITE_BUSY under concurrent turns.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL UNIQUE,
    creation_time TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_history (
    id        TEXT PRIMARY KEY,
    user_id   TEXT NOT NULL REFERENCES users(id),
    sender    TEXT NOT NULL CHECK (sender IN ('user','bot')),
    message   TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS chat_history_user_time_idx ON chat_history (user_id, timestamp);

CREATE TABLE IF NOT EXISTS chatbot_responses (
    query    TEXT PRIMARY KEY,
    response TEXT NOT NULL
);
`

// New opens the database at path and applies the schema.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB allows wiring with an existing connection and applies the schema.
func NewWithDB(db *sql.DB) (store.Store, error) {
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users         { return &users{db: s.db} }
func (s *sqliteStore) Messages() store.Messages   { return &messages{db: s.db} }
func (s *sqliteStore) Responses() store.Responses { return &responses{db: s.db} }

// HealthPing implements health.HealthPinger for the SQLite-backed store.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---
type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	id := m.UserID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := u.db.ExecContext(ctx, `
        INSERT INTO users (id, name, email, creation_time) VALUES (?,?,?,?)
    `, id, m.Name, m.Email, now)
	if err != nil {
		return nil, err
	}
	out := *m
	out.UserID = id
	out.CreationTime = now
	return &out, nil
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT id, name, email, creation_time FROM users WHERE email=?
    `, email)
	if err := row.Scan(&out.UserID, &out.Name, &out.Email, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// --- Messages ---
type messages struct{ db *sql.DB }

func (m *messages) Append(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	id := msg.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO chat_history (id, user_id, sender, message, timestamp) VALUES (?,?,?,?,?)
    `, id, msg.UserID, string(msg.Sender), msg.Message, now)
	if err != nil {
		return nil, err
	}
	out := *msg
	out.MessageID = id
	out.Timestamp = now
	return &out, nil
}

func (m *messages) ListByUser(ctx context.Context, userID string) ([]*model.ChatMessage, error) {
	// rowid breaks ties between messages written in the same clock tick
	rows, err := m.db.QueryContext(ctx, `
        SELECT id, user_id, sender, message, timestamp
        FROM chat_history WHERE user_id=? ORDER BY timestamp ASC, rowid ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		var sender string
		if err := rows.Scan(&msg.MessageID, &msg.UserID, &sender, &msg.Message, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Sender = model.Sender(sender)
		res = append(res, &msg)
	}
	return res, rows.Err()
}

// --- Responses ---
type responses struct{ db *sql.DB }

func (r *responses) Lookup(ctx context.Context, query string) (string, error) {
	var out string
	row := r.db.QueryRowContext(ctx, `SELECT response FROM chatbot_responses WHERE query=?`, query)
	if err := row.Scan(&out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", err
	}
	return out, nil
}

func (r *responses) Put(ctx context.Context, cr *model.CannedResponse) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO chatbot_responses (query, response) VALUES (?,?)
        ON CONFLICT (query) DO UPDATE SET response=excluded.response
    `, cr.Query, cr.Response)
	return err
}
