// Package engine defines the storage contract the rest of wavault is built
// on: a flat key-value space with hierarchical slash-separated keys, ordered
// listing, and prefix-cascading deletion. Any backend implementing KV is
// interchangeable without touching the reconciliation logic.
package engine

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable indicates the backend could not complete an operation.
// Absence of a key is never an error; only real backend failures wrap this.
var ErrUnavailable = errors.New("engine: backend unavailable")

// Record is a stored key-value pair with its modification stamp.
// ModifiedAt is backend-defined (wall-clock millis or a monotonic sequence);
// it only has to order records within one backend instance.
type Record struct {
	Key        string
	Value      []byte
	ModifiedAt int64
}

// KV is the minimal storage capability wavault requires.
//
// Semantics every driver must guarantee:
//   - Get returns (nil, false, nil) for an absent key.
//   - Set with a nil value deletes the key. Writing a value byte-identical
//     to the stored one is an observable no-op: the modification stamp does
//     not advance.
//   - List returns records under prefix ordered most-recently-modified
//     first, ties broken by key ascending so repeated reads of unmodified
//     data are stable, sliced by offset/limit. limit <= 0 means no limit.
//   - DeletePrefix removes the record at prefix and every record below
//     prefix + "/" as one logical operation.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	List(ctx context.Context, prefix string, offset, limit int) ([]Record, error)
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Key joins path segments into a storage key.
func Key(segments ...string) string {
	return strings.Join(segments, "/")
}

// Under reports whether key lives at or below prefix in the key hierarchy.
// "chat/c1" is under "chat/c1" and "chat" but not under "chat/c".
func Under(key, prefix string) bool {
	if key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix+"/")
}
