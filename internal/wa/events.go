package wa

import (
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/matheus3301/wavault/internal/bus"
	"github.com/matheus3301/wavault/internal/status"
)

// EventHandler converts whatsmeow events into raw tagged variants on the
// bus and drives the session state machine. It does NOT touch storage —
// the reconciliation engine subscribes to the bus independently.
type EventHandler struct {
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, machine *status.Machine, logger *zap.Logger) *EventHandler {
	return &EventHandler{bus: b, machine: machine, logger: logger}
}

func (h *EventHandler) publish(kind string, payload any) {
	h.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Handle is the whatsmeow event handler entry point.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.Contact:
		h.publish(KindContact, RawContact{
			ID:   evt.JID.ToNonAD().String(),
			Name: evt.Action.GetFullName(),
		})
	case *events.PushName:
		h.publish(KindContact, RawContact{
			ID:   evt.JID.ToNonAD().String(),
			Name: evt.NewPushName,
		})
	case *events.Pin:
		pinned := int64(0)
		if evt.Action.GetPinned() {
			pinned = evt.Timestamp.UnixMilli()
		}
		h.publish(KindChatUpdate, RawChatUpdate{ID: evt.JID.String(), Pinned: &pinned})
	case *events.Archive:
		archived := evt.Action.GetArchived()
		h.publish(KindChatUpdate, RawChatUpdate{ID: evt.JID.String(), Archived: &archived})
	case *events.Mute:
		muted := int64(0)
		if evt.Action.GetMuted() {
			muted = evt.Action.GetMuteEndTimestamp()
		}
		h.publish(KindChatUpdate, RawChatUpdate{ID: evt.JID.String(), MutedUntil: &muted})
	case *events.Star:
		h.publish(KindMessageStar, RawMessageStar{
			ChatID:  evt.ChatJID.String(),
			ID:      evt.MessageID,
			Starred: evt.Action.GetStarred(),
		})
	case *events.DeleteChat:
		h.publish(KindChatDelete, RawChatDelete{ID: evt.JID.String()})
	case *events.ClearChat:
		h.publish(KindChatClear, RawChatClear{ChatID: evt.JID.String()})
	case *events.DeleteForMe:
		h.publish(KindMessageDelete, RawMessageDelete{
			ChatID: evt.ChatJID.String(),
			ID:     evt.MessageID,
		})
	case *events.JoinedGroup:
		name := evt.GroupName.Name
		h.publish(KindChatUpdate, RawChatUpdate{ID: evt.JID.String(), Name: &name})
	case *events.GroupInfo:
		if evt.Name != nil {
			name := evt.Name.Name
			h.publish(KindChatUpdate, RawChatUpdate{ID: evt.JID.String(), Name: &name})
		}
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.Connected:
		h.logger.Info("protocol session connected")
		current := h.machine.Current()
		if current == status.AuthRequired || current == status.Reconnecting {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Syncing)
		h.publish("sync.connected", nil)
	case *events.Disconnected:
		h.logger.Warn("protocol session disconnected")
		_ = h.machine.Transition(status.Reconnecting)
		h.publish("sync.disconnected", nil)
	case *events.LoggedOut:
		// Credentials revoked: terminal for this session, not for us.
		h.logger.Warn("protocol session logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.publish("session.logged_out", evt.Reason.String())
	}
}

// handleMessage splits a live message event into its raw kind: reaction,
// poll vote, revoke, edit, or plain content.
func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}

	chatID := evt.Info.Chat.String()

	if reaction := evt.Message.GetReactionMessage(); reaction != nil {
		h.publish(KindReaction, RawReaction{
			ChatID: chatID,
			ID:     reaction.GetKey().GetID(),
			Sender: evt.Info.Sender.String(),
			Emoji:  reaction.GetText(),
		})
		return
	}

	if vote := evt.Message.GetPollUpdateMessage(); vote != nil {
		h.publish(KindPollVote, RawPollVote{
			ChatID:     chatID,
			PollID:     vote.GetPollCreationMessageKey().GetID(),
			Voter:      evt.Info.Sender.String(),
			EncPayload: vote.GetVote().GetEncPayload(),
			EncIV:      vote.GetVote().GetEncIV(),
		})
		return
	}

	if prot := evt.Message.GetProtocolMessage(); prot != nil {
		switch prot.GetType() {
		case waE2E.ProtocolMessage_REVOKE:
			// Redirect to the revoked target, not the carrier's own id.
			h.publish(KindMessageDelete, RawMessageDelete{
				ChatID: chatID,
				ID:     prot.GetKey().GetID(),
			})
		case waE2E.ProtocolMessage_MESSAGE_EDIT:
			if edit, ok := editTarget(chatID, prot); ok {
				h.publish(KindMessageEdit, edit)
			}
		}
		return
	}

	h.publish(KindMessage, RawMessage{Message: ParseLiveMessage(evt)})
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	st := receiptStatus(evt.Type)
	if st < 0 {
		return
	}
	for _, mid := range evt.MessageIDs {
		h.publish(KindMessageStatus, RawMessageStatus{
			ChatID: evt.Chat.String(),
			ID:     mid,
			Status: st,
		})
	}
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	batch := RawHistoryBatch{Progress: int(data.GetProgress())}

	for _, pn := range data.GetPushnames() {
		batch.Contacts = append(batch.Contacts, RawContact{
			ID:   pn.GetID(),
			Name: pn.GetPushname(),
		})
	}

	for _, conv := range data.GetConversations() {
		chatID := conv.GetID()

		update := RawChatUpdate{ID: chatID}
		if name := conv.GetName(); name != "" {
			update.Name = &name
		}
		if conv.GetPinned() > 0 {
			pinned := int64(conv.GetPinned())
			update.Pinned = &pinned
		}
		if conv.GetArchived() {
			archived := true
			update.Archived = &archived
		}
		batch.Chats = append(batch.Chats, update)

		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			batch.Messages = append(batch.Messages, ParseHistoryMessage(
				chatID,
				wmsg.GetMessage(),
				wmsg.GetKey().GetID(),
				wmsg.GetKey().GetFromMe(),
				int64(wmsg.GetMessageTimestamp()),
			))
		}
	}

	if len(batch.Contacts) > 0 || len(batch.Chats) > 0 || len(batch.Messages) > 0 {
		h.publish(KindHistory, batch)
	}
}
