package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matheus3301/wavault/internal/engine"
)

// PutChat stores a chat record as given. Callers (the reconciliation
// pipeline) load, mutate, and write back; partial-update merging lives
// there because only the pipeline knows which raw event fields were
// present. Returns whether anything changed.
func (s *Store) PutChat(ctx context.Context, c *Chat) (changed bool, err error) {
	return s.putJSON(ctx, chatKey(c.ID), c)
}

// GetChat returns a chat, or nil if unknown.
func (s *Store) GetChat(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	ok, err := s.getJSON(ctx, chatKey(id), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// ListChats returns chat records, most recently modified first. Message
// records share the chat namespace, so listing filters to entity depth and
// applies offset/limit after the filter.
func (s *Store) ListChats(ctx context.Context, offset, limit int) ([]Chat, error) {
	recs, err := s.kv.List(ctx, "chat", 0, 0)
	if err != nil {
		return nil, err
	}
	var chats []Chat
	for _, rec := range recs {
		if recordDepth(rec.Key) != 2 { // chat/{id}
			continue
		}
		var c Chat
		if err := json.Unmarshal(rec.Value, &c); err != nil {
			return nil, fmt.Errorf("decode %q: %w", rec.Key, err)
		}
		chats = append(chats, c)
	}
	if offset >= len(chats) {
		return nil, nil
	}
	chats = chats[offset:]
	if limit > 0 && limit < len(chats) {
		chats = chats[:limit]
	}
	return chats, nil
}

// DeleteChat removes the chat, all of its messages, their contents, and the
// ordering index in one cascade.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	lock := s.chatLock(id)
	lock.Lock()
	defer lock.Unlock()
	return s.kv.DeletePrefix(ctx, chatKey(id))
}

// ClearMessages removes every message of a chat (records, contents, index)
// but keeps the chat itself.
func (s *Store) ClearMessages(ctx context.Context, cid string) error {
	lock := s.chatLock(cid)
	lock.Lock()
	defer lock.Unlock()
	if err := s.kv.DeletePrefix(ctx, engine.Key("chat", cid, "message")); err != nil {
		return err
	}
	return s.kv.Set(ctx, indexKey(cid), nil)
}
