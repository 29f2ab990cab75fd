package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// DB wraps the SQLite handle and implements reminder.Store and payment.Store.
// Instants are stored as unix millis and surfaced in loc.
type DB struct {
	db  *sql.DB
	loc *time.Location
	log logx.Logger
}

func Open(cfg Config, loc *time.Location, log logx.Logger) (*DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if loc == nil {
		loc = time.UTC
	}
	s := &DB{db: db, loc: loc, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendLog records one dispatch outcome in the audit table.
func (s *DB) AppendLog(ctx context.Context, at time.Time, kind string, chatID, refID int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_log(at, kind, chat_id, ref_id, err) VALUES(?,?,?,?,?)`,
		at.UnixMilli(), kind, chatID, refID, nullStr(errMsg),
	)
	return err
}

// ---- shared scanning helpers ----

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func strOrEmpty(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}
