package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// The ordering index is the synthetic secondary index that gives a chat
// reverse-chronological pagination on a backend with no range queries: one
// compact record per chat holding (timestamp, message id) pairs sorted
// descending by timestamp. Every mutation is a read-modify-write of that
// record, so all of them run under the chat's keyed mutex.

type indexEntry struct {
	TS int64  `json:"t"`
	ID string `json:"id"`
}

func (s *Store) loadIndex(ctx context.Context, cid string) ([]indexEntry, error) {
	data, ok, err := s.kv.Get(ctx, indexKey(cid))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode index %q: %w", cid, err)
	}
	return entries, nil
}

func (s *Store) saveIndex(ctx context.Context, cid string, entries []indexEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode index %q: %w", cid, err)
	}
	return s.kv.Set(ctx, indexKey(cid), data)
}

// indexAdd inserts (mid, ts) keeping descending timestamp order. A mid
// already present is replaced in place, never duplicated. Insertion for an
// equal timestamp goes after the existing run, so re-reading unmodified
// data always yields the same order.
func (s *Store) indexAdd(ctx context.Context, cid, mid string, ts int64) error {
	lock := s.chatLock(cid)
	lock.Lock()
	defer lock.Unlock()

	entries, err := s.loadIndex(ctx, cid)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.ID == mid {
			if e.TS == ts {
				return nil
			}
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	pos := sort.Search(len(entries), func(i int) bool { return entries[i].TS < ts })
	entries = append(entries, indexEntry{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = indexEntry{TS: ts, ID: mid}
	return s.saveIndex(ctx, cid, entries)
}

// indexRemove drops every entry for mid.
func (s *Store) indexRemove(ctx context.Context, cid, mid string) error {
	lock := s.chatLock(cid)
	lock.Lock()
	defer lock.Unlock()

	entries, err := s.loadIndex(ctx, cid)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != mid {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	if len(kept) == 0 {
		return s.kv.Set(ctx, indexKey(cid), nil)
	}
	return s.saveIndex(ctx, cid, kept)
}

// MessageIDs returns the message IDs of a chat at [offset, offset+limit),
// newest first. limit <= 0 means the rest of the index.
func (s *Store) MessageIDs(ctx context.Context, cid string, offset, limit int) ([]string, error) {
	entries, err := s.loadIndex(ctx, cid)
	if err != nil {
		return nil, err
	}
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// CountMessages returns the number of indexed messages in a chat.
func (s *Store) CountMessages(ctx context.Context, cid string) (int, error) {
	entries, err := s.loadIndex(ctx, cid)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
