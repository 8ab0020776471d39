// Package store is the typed domain layer over the engine contract.
// Records are JSON blobs; identity is the storage key. Layout:
//
//	contact/{id}
//	chat/{id}
//	chat/{id}/messages              ordering index
//	chat/{id}/message/{mid}
//	chat/{id}/message/{mid}/content
//	outbox/{client_id}
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/wavault/internal/engine"
)

// Store exposes the normalized model on top of any engine.KV.
type Store struct {
	kv engine.KV

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store over the given driver.
func New(kv engine.KV) *Store {
	return &Store{kv: kv, locks: make(map[string]*sync.Mutex)}
}

// KV returns the underlying driver.
func (s *Store) KV() engine.KV { return s.kv }

func contactKey(id string) string { return engine.Key("contact", id) }
func chatKey(id string) string    { return engine.Key("chat", id) }
func indexKey(cid string) string  { return engine.Key("chat", cid, "messages") }
func messageKey(cid, mid string) string {
	return engine.Key("chat", cid, "message", mid)
}
func contentKey(cid, mid string) string {
	return engine.Key("chat", cid, "message", mid, "content")
}

// chatLock returns the mutex serializing read-modify-write cycles on one
// chat's ordering index.
func (s *Store) chatLock(cid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[cid]
	if !ok {
		l = &sync.Mutex{}
		s.locks[cid] = l
	}
	return l
}

// getJSON loads and decodes a record. Absent keys return (false, nil).
func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// putJSON encodes and stores a record, reporting whether the stored bytes
// actually changed. Unchanged writes are suppressed at the driver anyway;
// the report lets callers suppress redundant notifications too.
func (s *Store) putJSON(ctx context.Context, key string, in any) (changed bool, err error) {
	data, err := json.Marshal(in)
	if err != nil {
		return false, fmt.Errorf("encode %q: %w", key, err)
	}
	existing, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if ok && bytes.Equal(existing, data) {
		return false, nil
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return false, err
	}
	return true, nil
}

// recordDepth counts key segments; used to tell entity records apart from
// their children when listing a namespace.
func recordDepth(key string) int {
	return strings.Count(key, "/") + 1
}
