// Package sync is the reconciliation pipeline: it drains raw protocol
// events off the bus, applies them to the store idempotently, and
// publishes normalized domain events for whatever actually changed.
package sync

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wavault/internal/bus"
	"github.com/matheus3301/wavault/internal/content"
	"github.com/matheus3301/wavault/internal/store"
	"github.com/matheus3301/wavault/internal/wa"
)

// Engine applies raw events to the store. A single goroutine drains the
// subscription, so every apply step sees the store it left behind.
type Engine struct {
	store    *store.Store
	bus      *bus.Bus
	resolver *content.Resolver
	logger   *zap.Logger
	cancel   context.CancelFunc

	synced     chan struct{}
	syncedOnce func()
}

// NewEngine creates a reconciliation engine.
func NewEngine(s *store.Store, b *bus.Bus, r *content.Resolver, logger *zap.Logger) *Engine {
	e := &Engine{
		store:    s,
		bus:      b,
		resolver: r,
		logger:   logger,
		synced:   make(chan struct{}),
	}
	done := e.synced
	e.syncedOnce = func() {
		select {
		case <-done:
		default:
			close(done)
		}
	}
	return e
}

// Start subscribes to raw protocol events and drains them until ctx ends.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("wa.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.Apply(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// WaitSynced blocks until the initial history backfill reports complete,
// or ctx ends.
func (e *Engine) WaitSynced(ctx context.Context) error {
	select {
	case <-e.synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply dispatches one raw event. Failures are logged and absorbed: a bad
// event must not take the stream down.
func (e *Engine) Apply(ctx context.Context, evt bus.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case wa.RawContact:
		err = e.applyContact(ctx, p)
	case wa.RawContactDelete:
		err = e.applyContactDelete(ctx, p)
	case wa.RawChatUpdate:
		err = e.applyChatUpdate(ctx, p)
	case wa.RawChatDelete:
		err = e.applyChatDelete(ctx, p)
	case wa.RawChatClear:
		err = e.applyChatClear(ctx, p)
	case wa.RawMessage:
		err = e.applyMessage(ctx, p)
	case wa.RawMessageStatus:
		err = e.applyStatus(ctx, p)
	case wa.RawMessageEdit:
		err = e.applyEdit(ctx, p)
	case wa.RawMessageStar:
		err = e.applyStar(ctx, p)
	case wa.RawMessageDelete:
		err = e.applyMessageDelete(ctx, p)
	case wa.RawReaction:
		err = e.applyReaction(ctx, p)
	case wa.RawPollVote:
		err = e.applyPollVote(ctx, p)
	case wa.RawHistoryBatch:
		err = e.applyHistory(ctx, p)
	default:
		e.logger.Debug("unhandled raw event", zap.String("kind", evt.Kind))
		return
	}
	if err != nil {
		e.logger.Error("failed to apply event", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

func (e *Engine) emit(kind string, payload any) {
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func (e *Engine) applyContact(ctx context.Context, raw wa.RawContact) error {
	c := &store.Contact{
		ID:    raw.ID,
		Name:  raw.Name,
		Phone: store.PhoneFromID(raw.ID),
		Photo: raw.Photo,
		Me:    raw.Me,
	}
	created, changed, err := e.store.PutContact(ctx, c)
	if err != nil {
		return err
	}
	switch {
	case created:
		e.emit("contact.created", map[string]string{"id": raw.ID})
	case changed:
		e.emit("contact.updated", map[string]string{"id": raw.ID})
	}
	return nil
}

func (e *Engine) applyContactDelete(ctx context.Context, raw wa.RawContactDelete) error {
	existing, err := e.store.GetContact(ctx, raw.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := e.store.DeleteContact(ctx, raw.ID); err != nil {
		return err
	}
	e.emit("contact.deleted", map[string]string{"id": raw.ID})
	return nil
}

// applyChatUpdate merges a partial update into the chat. Specific fields
// (pin, archive, mute) get dedicated events and suppress the generic
// chat.updated; several specifics in one update each emit.
func (e *Engine) applyChatUpdate(ctx context.Context, raw wa.RawChatUpdate) error {
	chat, err := e.store.GetChat(ctx, raw.ID)
	if err != nil {
		return err
	}
	created := chat == nil
	if created {
		chat = &store.Chat{ID: raw.ID}
	}

	var specifics []string
	if raw.Name != nil {
		chat.Name = *raw.Name
	}
	if raw.Pinned != nil && chat.Pinned != *raw.Pinned {
		chat.Pinned = *raw.Pinned
		specifics = append(specifics, "chat.pinned")
	}
	if raw.Archived != nil && chat.Archived != *raw.Archived {
		chat.Archived = *raw.Archived
		specifics = append(specifics, "chat.archived")
	}
	if raw.MutedUntil != nil && chat.MutedUntil != *raw.MutedUntil {
		chat.MutedUntil = *raw.MutedUntil
		specifics = append(specifics, "chat.muted")
	}
	for k, v := range raw.Raw {
		if chat.Raw == nil {
			chat.Raw = make(map[string]string)
		}
		chat.Raw[k] = v
	}

	changed, err := e.store.PutChat(ctx, chat)
	if err != nil {
		return err
	}
	payload := map[string]string{"id": raw.ID}
	switch {
	case created:
		e.emit("chat.created", payload)
		for _, kind := range specifics {
			e.emit(kind, payload)
		}
	case len(specifics) > 0:
		for _, kind := range specifics {
			e.emit(kind, payload)
		}
	case changed:
		e.emit("chat.updated", payload)
	}
	return nil
}

func (e *Engine) applyChatDelete(ctx context.Context, raw wa.RawChatDelete) error {
	existing, err := e.store.GetChat(ctx, raw.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := e.store.DeleteChat(ctx, raw.ID); err != nil {
		return err
	}
	e.emit("chat.deleted", map[string]string{"id": raw.ID})
	return nil
}

func (e *Engine) applyChatClear(ctx context.Context, raw wa.RawChatClear) error {
	existing, err := e.store.GetChat(ctx, raw.ChatID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := e.store.ClearMessages(ctx, raw.ChatID); err != nil {
		return err
	}
	e.emit("chat.updated", map[string]string{"id": raw.ChatID, "cleared": "true"})
	return nil
}

// applyMessage upserts a full message sighting. The parent chat is
// created on demand so backfilled messages never dangle.
func (e *Engine) applyMessage(ctx context.Context, raw wa.RawMessage) error {
	m := raw.Message
	if m == nil || m.ID == "" || m.ChatID == "" {
		return nil
	}

	chat, err := e.store.GetChat(ctx, m.ChatID)
	if err != nil {
		return err
	}
	if chat == nil {
		chat = &store.Chat{ID: m.ChatID}
		if _, err := e.store.PutChat(ctx, chat); err != nil {
			return err
		}
		e.emit("chat.created", map[string]string{"id": m.ChatID})
	}
	if m.CreatedAt > chat.LastMessageAt {
		chat.LastMessageAt = m.CreatedAt
		if _, err := e.store.PutChat(ctx, chat); err != nil {
			return err
		}
	}

	created, changed, err := e.store.PutMessage(ctx, m)
	if err != nil {
		return err
	}
	payload := map[string]string{"cid": m.ChatID, "id": m.ID}
	switch {
	case created:
		if err := e.resolver.Prime(ctx, m); err != nil {
			e.logger.Warn("failed to prime content", zap.String("id", m.ID), zap.Error(err))
		}
		e.emit("message.created", payload)
	case changed:
		e.emit("message.updated", payload)
	}
	return nil
}

// applyStatus is last-write-wins: whatever the stream reports latest is
// what gets stored, even if it reads as a regression.
func (e *Engine) applyStatus(ctx context.Context, raw wa.RawMessageStatus) error {
	if raw.Status < 0 {
		return nil
	}
	m, err := e.store.GetMessage(ctx, raw.ChatID, raw.ID)
	if err != nil {
		return err
	}
	if m == nil {
		e.logger.Debug("status for unknown message", zap.String("id", raw.ID))
		return nil
	}
	if m.Status == raw.Status {
		return nil
	}
	m.Status = raw.Status
	if _, _, err := e.store.PutMessage(ctx, m); err != nil {
		return err
	}
	e.emit("message.status", map[string]string{"cid": raw.ChatID, "id": raw.ID})
	return nil
}

// applyEdit replaces content-bearing fields only. Identity, sender, and
// timestamp survive, the edited flag is sticky, and cached content is
// invalidated so the next read re-derives it.
func (e *Engine) applyEdit(ctx context.Context, raw wa.RawMessageEdit) error {
	m, err := e.store.GetMessage(ctx, raw.ChatID, raw.ID)
	if err != nil {
		return err
	}
	if m == nil {
		e.logger.Debug("edit for unknown message", zap.String("id", raw.ID))
		return nil
	}
	m.Caption = raw.Caption
	m.Edited = true
	if _, _, err := e.store.PutMessage(ctx, m); err != nil {
		return err
	}
	if err := e.store.DeleteContent(ctx, raw.ChatID, raw.ID); err != nil {
		return err
	}
	if err := e.resolver.Prime(ctx, m); err != nil {
		e.logger.Warn("failed to re-prime content", zap.String("id", raw.ID), zap.Error(err))
	}
	e.emit("message.updated", map[string]string{"cid": raw.ChatID, "id": raw.ID})
	return nil
}

func (e *Engine) applyStar(ctx context.Context, raw wa.RawMessageStar) error {
	m, err := e.store.GetMessage(ctx, raw.ChatID, raw.ID)
	if err != nil {
		return err
	}
	if m == nil || m.Starred == raw.Starred {
		return nil
	}
	m.Starred = raw.Starred
	if _, _, err := e.store.PutMessage(ctx, m); err != nil {
		return err
	}
	e.emit("message.updated", map[string]string{"cid": raw.ChatID, "id": raw.ID})
	return nil
}

func (e *Engine) applyMessageDelete(ctx context.Context, raw wa.RawMessageDelete) error {
	m, err := e.store.GetMessage(ctx, raw.ChatID, raw.ID)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	if err := e.store.DeleteMessage(ctx, raw.ChatID, raw.ID); err != nil {
		return err
	}
	e.emit("message.deleted", map[string]string{"cid": raw.ChatID, "id": raw.ID})
	return nil
}

// applyReaction never mutates the record; it only surfaces the sighting.
func (e *Engine) applyReaction(ctx context.Context, raw wa.RawReaction) error {
	m, err := e.store.GetMessage(ctx, raw.ChatID, raw.ID)
	if err != nil {
		return err
	}
	if m == nil {
		e.logger.Debug("reaction for unknown message", zap.String("id", raw.ID))
		return nil
	}
	e.emit("message.reacted", map[string]string{
		"cid":    raw.ChatID,
		"id":     raw.ID,
		"sender": raw.Sender,
		"emoji":  raw.Emoji,
	})
	return nil
}

// applyPollVote decrypts one ballot and folds it into the poll's tally.
// An undecryptable vote is dropped quietly: a single bad ballot must not
// poison the stream.
func (e *Engine) applyPollVote(ctx context.Context, raw wa.RawPollVote) error {
	m, err := e.store.GetMessage(ctx, raw.ChatID, raw.PollID)
	if err != nil {
		return err
	}
	if m == nil || m.Poll == nil {
		e.logger.Debug("vote for unknown poll", zap.String("id", raw.PollID))
		return nil
	}

	var tally content.Tally
	data, ok, err := e.store.GetContent(ctx, raw.ChatID, raw.PollID)
	if err != nil {
		return err
	}
	if ok {
		if err := json.Unmarshal(data, &tally); err != nil {
			return err
		}
	} else {
		tally = *content.NewTally(m.Poll)
	}

	secret := tally.Sign
	if len(secret) == 0 {
		secret = m.Poll.Secret
	}
	selected, err := content.DecryptVote(secret, raw.PollID, raw.Voter, raw.EncPayload, raw.EncIV)
	if err != nil {
		e.logger.Debug("undecryptable poll vote",
			zap.String("poll", raw.PollID), zap.String("voter", raw.Voter), zap.Error(err))
		return nil
	}

	if !tally.Apply(raw.Voter, selected) {
		return nil
	}
	updated, err := json.Marshal(&tally)
	if err != nil {
		return err
	}
	if err := e.store.SetContent(ctx, raw.ChatID, raw.PollID, updated); err != nil {
		return err
	}
	e.emit("message.updated", map[string]string{"cid": raw.ChatID, "id": raw.PollID})
	return nil
}
