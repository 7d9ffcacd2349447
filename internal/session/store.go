// Package session keeps per-browser API credentials for the web UI.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Laisky/topic-news/internal/news"
)

var (
	regexpTableName = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)

	// ErrNotFound means the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
)

// Store persists credentials by session id with a time-to-live.
type Store struct {
	db        *sql.DB
	tableName string
	ttl       time.Duration
	now       func() time.Time
	protector *Protector
}

// Option configures the store.
type Option func(*Store) error

// WithTableName overrides the table name.
func WithTableName(name string) Option {
	return func(s *Store) error {
		if !regexpTableName.MatchString(name) {
			return errors.Errorf("invalid table name: %s", name)
		}
		s.tableName = name
		return nil
	}
}

// WithProtector encrypts stored credentials with p, bound to the session id.
func WithProtector(p *Protector) Option {
	return func(s *Store) error {
		if p == nil {
			return errors.New("protector cannot be nil")
		}
		s.protector = p
		return nil
	}
}

// WithTTL sets how long a saved session stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) error {
		if ttl <= 0 {
			return errors.Errorf("ttl must be greater than 0: %s", ttl)
		}
		s.ttl = ttl
		return nil
	}
}

// WithClock overrides the store clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// Open opens a sqlite database at dsn and creates the session store on it.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %q", dsn)
	}

	s, err := New(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}
	return s, nil
}

// New creates the session store on db.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}

	s := &Store{
		db:        db,
		tableName: "sessions",
		ttl:       24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "apply opts")
		}
	}

	if err := s.setup(); err != nil {
		return nil, errors.Wrap(err, "setup session store")
	}
	return s, nil
}

func (s *Store) setup() error {
	stmt := `
CREATE TABLE IF NOT EXISTS ` + s.tableName + ` (
  id TEXT PRIMARY KEY,
  credentials TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  expire_at TIMESTAMP NOT NULL
)`

	if _, err := s.db.Exec(stmt); err != nil {
		return errors.Wrap(err, "create session table")
	}
	return nil
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Save upserts creds under id and restarts its TTL.
func (s *Store) Save(ctx context.Context, id string, creds news.Credentials) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.Wrapf(err, "invalid session id %q", id)
	}

	raw, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "marshal credentials")
	}

	payload := string(raw)
	if s.protector != nil {
		if payload, err = s.protector.Seal(ctx, raw, []byte(id)); err != nil {
			return errors.Wrap(err, "seal credentials")
		}
	}

	now := s.now().UTC()
	stmt := `
INSERT INTO ` + s.tableName + ` (id, credentials, created_at, expire_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT(id)
DO UPDATE SET credentials = EXCLUDED.credentials, expire_at = EXCLUDED.expire_at`

	if _, err = s.db.ExecContext(ctx, stmt, id, payload, now, now.Add(s.ttl)); err != nil {
		return errors.Wrap(err, "upsert session")
	}
	return nil
}

// Load returns the credentials saved under id. Expired sessions are deleted
// and reported as ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (news.Credentials, error) {
	var (
		creds    news.Credentials
		payload  string
		expireAt time.Time
	)

	stmt := `SELECT credentials, expire_at FROM ` + s.tableName + ` WHERE id = $1 LIMIT 1`
	err := s.db.QueryRowContext(ctx, stmt, id).Scan(&payload, &expireAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return creds, errors.Wrapf(ErrNotFound, "session %s", id)
		}
		return creds, errors.Wrap(err, "query session")
	}

	if s.now().After(expireAt) {
		_ = s.Delete(ctx, id)
		return creds, errors.Wrapf(ErrNotFound, "session %s expired", id)
	}

	raw := []byte(payload)
	if s.protector != nil {
		if raw, err = s.protector.Open(ctx, payload, []byte(id)); err != nil {
			return creds, errors.Wrap(err, "open credentials")
		}
	}

	if err = json.Unmarshal(raw, &creds); err != nil {
		return creds, errors.Wrap(err, "unmarshal credentials")
	}
	return creds, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, id string) error {
	stmt := `DELETE FROM ` + s.tableName + ` WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// PurgeExpired deletes every expired session and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	stmt := `DELETE FROM ` + s.tableName + ` WHERE expire_at < $1`
	res, err := s.db.ExecContext(ctx, stmt, s.now().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "purge expired sessions")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return errors.WithStack(s.db.Close())
}
