package wa

import "github.com/matheus3301/wavault/internal/store"

// Bus kinds for raw protocol events. The reconciliation engine subscribes
// to the "wa." namespace and switches on these.
const (
	KindContact       = "wa.contact"
	KindContactDelete = "wa.contact_delete"
	KindChatUpdate    = "wa.chat_update"
	KindChatDelete    = "wa.chat_delete"
	KindChatClear     = "wa.chat_clear"
	KindMessage       = "wa.message"
	KindMessageStatus = "wa.message_status"
	KindMessageEdit   = "wa.message_edit"
	KindMessageStar   = "wa.message_star"
	KindMessageDelete = "wa.message_delete"
	KindReaction      = "wa.reaction"
	KindPollVote      = "wa.poll_vote"
	KindHistory       = "wa.history"
)

// Raw events are the tagged variants the duck-typed protocol payloads are
// converted into at the boundary. Pointer fields mean "absent from this
// event": the pipeline only touches what was actually carried.

// RawContact is a contact upsert. Zero fields are absent.
type RawContact struct {
	ID    string
	Name  string
	Photo *string
	Me    bool
}

// RawContactDelete removes a contact.
type RawContactDelete struct {
	ID string
}

// RawChatUpdate is a partial chat update. Name is the generic field;
// Pinned, Archived, and MutedUntil are the specific ones that get
// dedicated domain events.
type RawChatUpdate struct {
	ID         string
	Name       *string
	Pinned     *int64
	Archived   *bool
	MutedUntil *int64
	Raw        map[string]string
}

// RawChatDelete removes a chat and everything under it.
type RawChatDelete struct {
	ID string
}

// RawChatClear removes every message of a chat but keeps the chat.
type RawChatClear struct {
	ChatID string
}

// RawMessage is a full normalized message sighting.
type RawMessage struct {
	Message *store.Message
}

// RawMessageStatus is a delivery-state update without an edit payload.
type RawMessageStatus struct {
	ChatID string
	ID     string
	Status int
}

// RawMessageEdit replaces the content-bearing fields of an existing
// message.
type RawMessageEdit struct {
	ChatID  string
	ID      string
	Caption string
}

// RawMessageStar toggles the starred flag of an existing message.
type RawMessageStar struct {
	ChatID  string
	ID      string
	Starred bool
}

// RawMessageDelete removes one message. For revoke-type protocol events the
// parser already redirected ChatID/ID to the target identity, which may
// differ from the carrier event's own.
type RawMessageDelete struct {
	ChatID string
	ID     string
}

// RawReaction is an observed reaction; it never mutates stored state.
type RawReaction struct {
	ChatID string
	ID     string
	Sender string
	Emoji  string
}

// RawPollVote is an encrypted vote against a poll message.
type RawPollVote struct {
	ChatID     string
	PollID     string
	Voter      string
	EncPayload []byte
	EncIV      []byte
}

// RawHistoryBatch is a bulk backfill snapshot. Items run through the same
// per-entity reconciliation as live events.
type RawHistoryBatch struct {
	Contacts []RawContact
	Chats    []RawChatUpdate
	Messages []*store.Message
	Progress int // 0..100 as reported by the protocol
}
