package store

import "context"

// GetContent returns a message's cached binary payload.
func (s *Store) GetContent(ctx context.Context, cid, mid string) ([]byte, bool, error) {
	return s.kv.Get(ctx, contentKey(cid, mid))
}

// SetContent stores a message's binary payload. The engine contract makes
// the write all-or-nothing; there is never a partially written content
// record.
func (s *Store) SetContent(ctx context.Context, cid, mid string, data []byte) error {
	return s.kv.Set(ctx, contentKey(cid, mid), data)
}

// DeleteContent invalidates a cached payload so the next resolution
// re-derives or re-fetches it.
func (s *Store) DeleteContent(ctx context.Context, cid, mid string) error {
	return s.kv.Set(ctx, contentKey(cid, mid), nil)
}
