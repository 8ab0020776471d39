package store

import "context"

// PutMessage stores a message and keeps the ordering index in step.
// Idempotent on (ChatID, ID): rewriting an identical record changes
// nothing. Returns whether the identity is new and whether anything
// changed.
func (s *Store) PutMessage(ctx context.Context, m *Message) (created, changed bool, err error) {
	var stored Message
	exists, err := s.getJSON(ctx, messageKey(m.ChatID, m.ID), &stored)
	if err != nil {
		return false, false, err
	}
	changed, err = s.putJSON(ctx, messageKey(m.ChatID, m.ID), m)
	if err != nil {
		return false, false, err
	}
	if err := s.indexAdd(ctx, m.ChatID, m.ID, m.CreatedAt); err != nil {
		return false, false, err
	}
	return !exists, changed, nil
}

// GetMessage returns a message, or nil if unknown.
func (s *Store) GetMessage(ctx context.Context, cid, mid string) (*Message, error) {
	var m Message
	ok, err := s.getJSON(ctx, messageKey(cid, mid), &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

// DeleteMessage removes the record, its content, and its index entry.
// Unknown identities are a no-op.
func (s *Store) DeleteMessage(ctx context.Context, cid, mid string) error {
	if err := s.kv.DeletePrefix(ctx, messageKey(cid, mid)); err != nil {
		return err
	}
	return s.indexRemove(ctx, cid, mid)
}

// ListMessages pages through a chat newest first, driven by the ordering
// index rather than a backend scan.
func (s *Store) ListMessages(ctx context.Context, cid string, offset, limit int) ([]Message, error) {
	ids, err := s.MessageIDs(ctx, cid, offset, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(ids))
	for _, mid := range ids {
		var m Message
		ok, err := s.getJSON(ctx, messageKey(cid, mid), &m)
		if err != nil {
			return nil, err
		}
		if ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}
