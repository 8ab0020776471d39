package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Outbox entry states.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry is a pending outgoing message.
type OutboxEntry struct {
	ClientID    string `json:"client_id"`
	ChatID      string `json:"cid"`
	Body        string `json:"body"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
	ServerMsgID string `json:"server_msg_id,omitempty"`
	QueuedAt    int64  `json:"queued_at"`
}

func outboxKey(clientID string) string {
	return "outbox/" + clientID
}

// QueueOutbox persists a new pending send.
func (s *Store) QueueOutbox(ctx context.Context, e *OutboxEntry) error {
	e.State = OutboxQueued
	_, err := s.putJSON(ctx, outboxKey(e.ClientID), e)
	return err
}

// PendingOutbox returns queued entries, oldest enqueue first so sends keep
// their submission order.
func (s *Store) PendingOutbox(ctx context.Context) ([]OutboxEntry, error) {
	recs, err := s.kv.List(ctx, "outbox", 0, 0)
	if err != nil {
		return nil, err
	}
	var pending []OutboxEntry
	for _, rec := range recs {
		var e OutboxEntry
		if err := json.Unmarshal(rec.Value, &e); err != nil {
			return nil, fmt.Errorf("decode %q: %w", rec.Key, err)
		}
		if e.State == OutboxQueued {
			pending = append(pending, e)
		}
	}
	// List is newest-modified-first; drain oldest first.
	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}
	return pending, nil
}

// MarkOutbox transitions an outbox entry to the given state.
func (s *Store) MarkOutbox(ctx context.Context, clientID, state, serverMsgID, errMsg string) error {
	var e OutboxEntry
	ok, err := s.getJSON(ctx, outboxKey(clientID), &e)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("outbox entry %q not found", clientID)
	}
	e.State = state
	e.ServerMsgID = serverMsgID
	e.Error = errMsg
	_, err = s.putJSON(ctx, outboxKey(clientID), &e)
	return err
}
