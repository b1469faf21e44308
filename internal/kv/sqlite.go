package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// SQLite stores values in a single SQLite table. Several processes may share
// the same database file; each sees the others' writes through Watch.
type SQLite struct {
	db   *sql.DB
	opts options

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// OpenSQLite opens or creates the database at path and applies migrations.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLite{
		db:   db,
		opts: buildOptions(opts),
		done: make(chan struct{}),
	}
	if err := s.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB,
			version INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value stored under key.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, ErrNotFound
	}
	return value, nil
}

// Set replaces the value stored under key.
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, version, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			version = kv.version + 1,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Delete removes the value under key. The row is kept as a tombstone so the
// version keeps increasing and watchers notice the removal.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE kv SET value = NULL, version = version + 1, updated_at = ? WHERE key = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), key)
	return err
}

// Watch polls for committed changes to key. It pins one connection and reads
// PRAGMA data_version, which only moves when another connection commits, and
// then compares the row version so changes to other keys stay quiet.
func (s *SQLite) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("kv: pin connection: %w", err)
	}
	dataVersion, err := readDataVersion(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	version, err := readKeyVersion(ctx, conn, key)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	ch := make(chan struct{}, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(ch)
		defer func() {
			if cerr := conn.Close(); cerr != nil {
				// Best-effort release of the pinned connection.
				_ = cerr
			}
		}()

		ticker := time.NewTicker(s.opts.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
			}
			dv, err := readDataVersion(ctx, conn)
			if err != nil {
				if ctx.Err() == nil {
					s.opts.logger.Warn("kv watch: data_version", "key", key, "error", err)
				}
				continue
			}
			if dv == dataVersion {
				continue
			}
			dataVersion = dv
			v, err := readKeyVersion(ctx, conn, key)
			if err != nil {
				if ctx.Err() == nil {
					s.opts.logger.Warn("kv watch: version", "key", key, "error", err)
				}
				continue
			}
			if v != version {
				version = v
				notify(ch)
			}
		}
	}()
	return ch, nil
}

// Close stops all watchers and closes the database.
func (s *SQLite) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return s.db.Close()
}

func readDataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("kv: read data_version: %w", err)
	}
	return v, nil
}

func readKeyVersion(ctx context.Context, conn *sql.Conn, key string) (int64, error) {
	var v int64
	err := conn.QueryRowContext(ctx, `SELECT version FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kv: read version: %w", err)
	}
	return v, nil
}
