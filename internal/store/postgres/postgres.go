package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chatbuddy/chatbot-backend/internal/model"
	"github.com/chatbuddy/chatbot-backend/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users         { return &users{db: s.db} }
func (s *pgStore) Messages() store.Messages   { return &messages{db: s.db} }
func (s *pgStore) Responses() store.Responses { return &responses{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap performs a connectivity check to ensure Postgres is reachable.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil // No DSN configured, skip bootstrap
	}

	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.PingContext(ctx)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL UNIQUE,
    creation_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_history (
    id        TEXT PRIMARY KEY,
    user_id   TEXT NOT NULL REFERENCES users(id),
    sender    TEXT NOT NULL CHECK (sender IN ('user','bot')),
    message   TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS chat_history_user_time_idx ON chat_history (user_id, timestamp);

CREATE TABLE IF NOT EXISTS chatbot_responses (
    query    TEXT PRIMARY KEY,
    response TEXT NOT NULL
);
`

// EnsureSchema applies the schema. Statements are idempotent so it is safe to
// run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schemaDDL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// --- Users ---
type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	id := m.UserID
	if id == "" {
		id = uuid.New().String()
	}
	var created time.Time
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (id, name, email)
        VALUES ($1,$2,$3)
        RETURNING creation_time
    `, id, m.Name, m.Email)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *m
	out.UserID = id
	out.CreationTime = created
	return &out, nil
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT id, name, email, creation_time FROM users WHERE email=$1
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
	var ts time.Time
	row := m.db.QueryRowContext(ctx, `
        INSERT INTO chat_history (id, user_id, sender, message)
        VALUES ($1,$2,$3,$4)
        RETURNING timestamp
    `, id, msg.UserID, string(msg.Sender), msg.Message)
	if err := row.Scan(&ts); err != nil {
		return nil, err
	}
	out := *msg
	out.MessageID = id
	out.Timestamp = ts
	return &out, nil
}

func (m *messages) ListByUser(ctx context.Context, userID string) ([]*model.ChatMessage, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT id, user_id, sender, message, timestamp
        FROM chat_history WHERE user_id=$1 ORDER BY timestamp ASC, id ASC
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
	row := r.db.QueryRowContext(ctx, `
        SELECT response FROM chatbot_responses WHERE query=$1
    `, query)
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
        INSERT INTO chatbot_responses (query, response)
        VALUES ($1,$2)
        ON CONFLICT (query) DO UPDATE SET response=EXCLUDED.response
    `, cr.Query, cr.Response)
	return err
}
