// Package memkv is an in-memory engine driver. It backs tests and
// throwaway sessions; nothing survives process exit.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/matheus3301/wavault/internal/engine"
)

// KV is a map-backed engine.KV. Modification stamps come from a monotonic
// sequence instead of the clock so ordering never jitters on fast writes.
type KV struct {
	mu   sync.RWMutex
	data map[string]record
	seq  int64
}

type record struct {
	value []byte
	stamp int64
}

// New creates an empty in-memory store.
func New() *KV {
	return &KV{data: make(map[string]record)}
}

func (kv *KV) Get(_ context.Context, key string) ([]byte, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	rec, ok := kv.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(rec.value))
	copy(out, rec.value)
	return out, true, nil
}

func (kv *KV) Set(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if value == nil {
		delete(kv.data, key)
		return nil
	}
	if existing, ok := kv.data[key]; ok && bytes.Equal(existing.value, value) {
		// Identical rewrite: stamp must not advance.
		return nil
	}
	kv.seq++
	stored := make([]byte, len(value))
	copy(stored, value)
	kv.data[key] = record{value: stored, stamp: kv.seq}
	return nil
}

func (kv *KV) List(_ context.Context, prefix string, offset, limit int) ([]engine.Record, error) {
	kv.mu.RLock()
	var recs []engine.Record
	for key, rec := range kv.data {
		if !engine.Under(key, prefix) {
			continue
		}
		recs = append(recs, engine.Record{Key: key, Value: rec.value, ModifiedAt: rec.stamp})
	}
	kv.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].ModifiedAt != recs[j].ModifiedAt {
			return recs[i].ModifiedAt > recs[j].ModifiedAt
		}
		return recs[i].Key < recs[j].Key
	})
	return slice(recs, offset, limit), nil
}

func (kv *KV) DeletePrefix(_ context.Context, prefix string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for key := range kv.data {
		if engine.Under(key, prefix) {
			delete(kv.data, key)
		}
	}
	return nil
}

func (kv *KV) Close() error { return nil }

func slice(recs []engine.Record, offset, limit int) []engine.Record {
	if offset >= len(recs) {
		return nil
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}
