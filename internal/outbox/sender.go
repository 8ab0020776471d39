// Package outbox drains queued outgoing messages through the protocol
// adapter, keeping an optimistic local copy so the account reflects the
// send before the server acknowledges it.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/wavault/internal/bus"
	"github.com/matheus3301/wavault/internal/store"
)

// TextSender is the adapter surface the sender needs.
type TextSender interface {
	SendText(ctx context.Context, chatID string, text string) (serverMsgID string, err error)
}

// Sender polls the outbox and pushes pending entries out.
type Sender struct {
	store  *store.Store
	sender TextSender
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewSender creates an outbox sender.
func NewSender(s *store.Store, sender TextSender, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		store:  s,
		sender: sender,
		bus:    b,
		logger: logger,
	}
}

// Enqueue queues a text message for delivery and returns its client ID.
func (s *Sender) Enqueue(ctx context.Context, chatID, body string) (string, error) {
	entry := &store.OutboxEntry{
		ClientID: uuid.NewString(),
		ChatID:   chatID,
		Body:     body,
		QueuedAt: time.Now().UnixMilli(),
	}
	if err := s.store.QueueOutbox(ctx, entry); err != nil {
		return "", err
	}
	return entry.ClientID, nil
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending drains every queued entry once, oldest first.
func (s *Sender) ProcessPending(ctx context.Context) {
	pending, err := s.store.PendingOutbox(ctx)
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		s.send(ctx, entry)
	}
}

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) {
	if err := s.store.MarkOutbox(ctx, entry.ClientID, store.OutboxSending, "", ""); err != nil {
		s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_id", entry.ClientID))
		return
	}

	// Optimistic insert under the client ID so the message is queryable
	// immediately.
	now := time.Now().UnixMilli()
	msg := &store.Message{
		ID:        entry.ClientID,
		ChatID:    entry.ChatID,
		Type:      store.TypeText,
		Caption:   entry.Body,
		FromMe:    true,
		Status:    store.StatusPending,
		CreatedAt: now,
	}
	if _, _, err := s.store.PutMessage(ctx, msg); err != nil {
		s.logger.Error("failed to insert optimistic message", zap.Error(err), zap.String("client_id", entry.ClientID))
	} else {
		s.bus.Publish(bus.Event{
			Kind:      "message.created",
			Timestamp: time.Now(),
			Payload:   map[string]string{"cid": entry.ChatID, "id": entry.ClientID},
		})
	}

	serverMsgID, err := s.sender.SendText(ctx, entry.ChatID, entry.Body)
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("client_id", entry.ClientID))
		if markErr := s.store.MarkOutbox(ctx, entry.ClientID, store.OutboxFailed, "", err.Error()); markErr != nil {
			s.logger.Error("failed to mark failed", zap.Error(markErr))
		}
		s.bus.Publish(bus.Event{
			Kind:      "message.send_failed",
			Timestamp: time.Now(),
			Payload:   map[string]string{"client_id": entry.ClientID, "error": err.Error()},
		})
		return
	}

	if err := s.store.MarkOutbox(ctx, entry.ClientID, store.OutboxSent, serverMsgID, ""); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_id", entry.ClientID))
	}
	msg.Status = store.StatusSent
	if _, _, err := s.store.PutMessage(ctx, msg); err != nil {
		s.logger.Error("failed to update optimistic message", zap.Error(err), zap.String("client_id", entry.ClientID))
	}

	s.logger.Info("message sent",
		zap.String("client_id", entry.ClientID), zap.String("server_msg_id", serverMsgID))
	s.bus.Publish(bus.Event{
		Kind:      "message.send_ack",
		Timestamp: time.Now(),
		Payload:   map[string]string{"client_id": entry.ClientID, "server_msg_id": serverMsgID},
	})
}
