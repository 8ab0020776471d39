package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wavault/internal/wa"
)

// applyHistory runs a backfill snapshot through the same per-entity path
// as live events, so edge-case handling cannot diverge between the two.
// Replaying the same snapshot is a no-op beyond the progress event.
func (e *Engine) applyHistory(ctx context.Context, raw wa.RawHistoryBatch) error {
	start := time.Now()

	for _, c := range raw.Contacts {
		if err := e.applyContact(ctx, c); err != nil {
			e.logger.Warn("history contact failed", zap.String("id", c.ID), zap.Error(err))
		}
	}
	for _, c := range raw.Chats {
		if err := e.applyChatUpdate(ctx, c); err != nil {
			e.logger.Warn("history chat failed", zap.String("id", c.ID), zap.Error(err))
		}
	}
	for _, m := range raw.Messages {
		if err := e.applyMessage(ctx, wa.RawMessage{Message: m}); err != nil {
			e.logger.Warn("history message failed", zap.String("id", m.ID), zap.Error(err))
		}
	}

	e.logger.Info("history batch applied",
		zap.Int("contacts", len(raw.Contacts)),
		zap.Int("chats", len(raw.Chats)),
		zap.Int("messages", len(raw.Messages)),
		zap.Int("progress", raw.Progress),
		zap.Duration("took", time.Since(start)))

	e.emit("sync.history", map[string]int{
		"contacts": len(raw.Contacts),
		"chats":    len(raw.Chats),
		"messages": len(raw.Messages),
		"progress": raw.Progress,
	})

	if raw.Progress >= 100 {
		e.syncedOnce()
	}
	return nil
}
