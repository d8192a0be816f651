// internal/store/sqlite.go
//
// SQLite-backed Store for session snapshots.
// Responsibilities:
//   - Opening SQLite with safe defaults (WAL, busy timeout).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Upserting/reading/deleting one row per session.
//
// The full snapshot is stored as JSON in `data`; state/score/remaining are
// duplicated into columns so the table can be inspected by hand.

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/colorgame/internal/game"
)

//go:embed migrations/*.sql
var migrations embed.FS

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) the database at dsn and migrates it.
// dsn ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, dsn string) (Store, error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// openDB opens a SQLite database file with busy timeout and WAL journaling.
// The parent directory is created for relative paths such as ./data/app.db.
func openDB(dsn string) (*sql.DB, error) {
	if dsn == ":memory:" {
		db, err := sql.Open("sqlite3", ":memory:")
		if err != nil {
			return nil, err
		}
		// every connection to :memory: is its own database
		db.SetMaxOpenConns(1)
		return db, nil
	}

	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// migrate applies embedded migrations in lexical order, each inside its own
// transaction, skipping files already recorded in _migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	var files []string
	if err := fs.WalkDir(migrations, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// Save upserts the snapshot row for g.ID.
func (s *sqliteStore) Save(ctx context.Context, g game.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", g.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, state, score, remaining, data, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            state=excluded.state,
            score=excluded.score,
            remaining=excluded.remaining,
            data=excluded.data,
            updated_at=excluded.updated_at`,
		g.ID, string(g.State), g.Score, g.Remaining, string(data), g.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", g.ID, err)
	}
	return nil
}

// Get loads the snapshot for id.
func (s *sqliteStore) Get(ctx context.Context, id string) (game.Game, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id=?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Game{}, ErrNotFound
	}
	if err != nil {
		return game.Game{}, fmt.Errorf("load session %s: %w", id, err)
	}
	var g game.Game
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return game.Game{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return g, nil
}

// Delete removes the row for id.
func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }
