package daemon

import (
	"context"

	"github.com/matheus3301/wavault/internal/content"
	"github.com/matheus3301/wavault/internal/outbox"
	"github.com/matheus3301/wavault/internal/status"
	"github.com/matheus3301/wavault/internal/store"
	intsync "github.com/matheus3301/wavault/internal/sync"
	"github.com/matheus3301/wavault/internal/wa"
)

// Vault is the in-process query and command surface over the synced
// account. Reads come straight off the store; writes go through the
// outbox so they survive restarts and disconnects.
type Vault struct {
	store    *store.Store
	resolver *content.Resolver
	sender   *outbox.Sender
	adapter  *wa.Adapter
	machine  *status.Machine
	engine   *intsync.Engine
}

// NewVault assembles the facade.
func NewVault(s *store.Store, r *content.Resolver, sender *outbox.Sender, adapter *wa.Adapter, machine *status.Machine, eng *intsync.Engine) *Vault {
	return &Vault{
		store:    s,
		resolver: r,
		sender:   sender,
		adapter:  adapter,
		machine:  machine,
		engine:   eng,
	}
}

// Status returns the daemon runtime state.
func (v *Vault) Status() status.State {
	return v.machine.Current()
}

// WaitSynced blocks until the initial backfill completes or ctx ends.
func (v *Vault) WaitSynced(ctx context.Context) error {
	return v.engine.WaitSynced(ctx)
}

// Contacts pages through stored contacts, most recently updated first.
func (v *Vault) Contacts(ctx context.Context, offset, limit int) ([]store.Contact, error) {
	return v.store.ListContacts(ctx, offset, limit)
}

// Chats pages through stored chats, most recently updated first.
func (v *Vault) Chats(ctx context.Context, offset, limit int) ([]store.Chat, error) {
	return v.store.ListChats(ctx, offset, limit)
}

// Messages pages through a chat's messages, newest first.
func (v *Vault) Messages(ctx context.Context, chatID string, offset, limit int) ([]store.Message, error) {
	return v.store.ListMessages(ctx, chatID, offset, limit)
}

// CountMessages returns how many messages a chat holds.
func (v *Vault) CountMessages(ctx context.Context, chatID string) (int, error) {
	return v.store.CountMessages(ctx, chatID)
}

// Content returns a message's payload, fetching media on first access.
func (v *Vault) Content(ctx context.Context, chatID, msgID string) ([]byte, error) {
	return v.resolver.Content(ctx, chatID, msgID)
}

// SendText queues a text message for delivery and returns its client ID.
func (v *Vault) SendText(ctx context.Context, chatID, body string) (string, error) {
	return v.sender.Enqueue(ctx, chatID, body)
}

// MarkRead reports messages of a chat as read on the account.
func (v *Vault) MarkRead(ctx context.Context, chatID, senderID string, msgIDs []string) error {
	return v.adapter.MarkRead(ctx, chatID, senderID, msgIDs)
}

// RefreshGroup re-fetches a group's metadata from the server and routes
// the name through the pipeline like any other chat update.
func (v *Vault) RefreshGroup(ctx context.Context, chatID string) error {
	return v.adapter.SyncGroupName(ctx, chatID)
}
