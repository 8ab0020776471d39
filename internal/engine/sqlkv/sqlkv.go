// Package sqlkv is a SQLite-backed engine driver. Schema lives in embedded
// migrations applied through golang-migrate, same as the rest of the
// project's SQLite handling.
package sqlkv

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wavault/internal/engine"

	_ "github.com/mattn/go-sqlite3"
)

// KV stores records in a single kv table.
type KV struct {
	db *sql.DB

	mu   sync.Mutex
	last int64
}

// Open opens (or creates) the database at path with WAL mode and applies
// pending migrations.
func Open(path string) (*KV, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlkv open: %w: %w", engine.ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlkv ping: %w: %w", engine.ErrUnavailable, err)
	}
	kv := &KV{db: db}
	if _, err := kv.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

// stamp returns a strictly increasing modification stamp so two writes in
// the same millisecond still order deterministically.
func (kv *KV) stamp() int64 {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= kv.last {
		now = kv.last + 1
	}
	kv.last = now
	return now
}

func (kv *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := kv.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlkv get %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	return value, true, nil
}

func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		if _, err := kv.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("sqlkv delete %q: %w: %w", key, engine.ErrUnavailable, err)
		}
		return nil
	}
	// The WHERE clause on the conflict update keeps identical rewrites from
	// advancing modified_at.
	_, err := kv.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, modified_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			modified_at = excluded.modified_at
		WHERE kv.value != excluded.value`,
		key, value, kv.stamp())
	if err != nil {
		return fmt.Errorf("sqlkv set %q: %w: %w", key, engine.ErrUnavailable, err)
	}
	return nil
}

func (kv *KV) List(ctx context.Context, prefix string, offset, limit int) ([]engine.Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := kv.db.QueryContext(ctx, `
		SELECT key, value, modified_at FROM kv
		WHERE key = ? OR key LIKE ? ESCAPE '\'
		ORDER BY modified_at DESC, key ASC
		LIMIT ? OFFSET ?`,
		prefix, likePattern(prefix), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlkv list %q: %w: %w", prefix, engine.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var recs []engine.Record
	for rows.Next() {
		var r engine.Record
		if err := rows.Scan(&r.Key, &r.Value, &r.ModifiedAt); err != nil {
			return nil, fmt.Errorf("sqlkv list %q: %w: %w", prefix, engine.ErrUnavailable, err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlkv list %q: %w: %w", prefix, engine.ErrUnavailable, err)
	}
	return recs, nil
}

func (kv *KV) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := kv.db.ExecContext(ctx,
		`DELETE FROM kv WHERE key = ? OR key LIKE ? ESCAPE '\'`,
		prefix, likePattern(prefix))
	if err != nil {
		return fmt.Errorf("sqlkv delete prefix %q: %w: %w", prefix, engine.ErrUnavailable, err)
	}
	return nil
}

func (kv *KV) Close() error { return kv.db.Close() }

// likePattern escapes LIKE metacharacters in prefix and appends the subtree
// wildcard.
func likePattern(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "/%"
}
