package wa

import (
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/matheus3301/wavault/internal/store"
)

// ParseLiveMessage normalizes a live message event into a store record.
// Only plain content events go through here; protocol sub-messages
// (revoke, edit, reaction, poll vote) are split off by the event handler
// first.
func ParseLiveMessage(evt *events.Message) *store.Message {
	m := parseBody(evt.Message)
	m.ID = evt.Info.ID
	m.ChatID = evt.Info.Chat.String()
	m.Sender = evt.Info.Sender.String()
	m.SenderName = evt.Info.PushName
	m.FromMe = evt.Info.IsFromMe
	m.CreatedAt = evt.Info.Timestamp.UnixMilli()
	if m.FromMe {
		m.Status = store.StatusSent
	}
	if exp := expirationSeconds(evt.Message); exp > 0 {
		m.ExpiresAt = m.CreatedAt + exp*1000
	}
	if secret := evt.Message.GetMessageContextInfo().GetMessageSecret(); len(secret) > 0 && m.Poll != nil {
		m.Poll.Secret = secret
	}
	return m
}

// ParseHistoryMessage normalizes one backfilled message of a conversation.
func ParseHistoryMessage(chatID string, wmsg *waE2E.Message, id string, fromMe bool, tsSeconds int64) *store.Message {
	m := parseBody(wmsg)
	m.ID = id
	m.ChatID = chatID
	m.FromMe = fromMe
	m.CreatedAt = tsSeconds * 1000
	if m.FromMe {
		m.Status = store.StatusSent
	}
	if secret := wmsg.GetMessageContextInfo().GetMessageSecret(); len(secret) > 0 && m.Poll != nil {
		m.Poll.Secret = secret
	}
	return m
}

// parseBody fills the content-derived fields: type, caption, mime, media
// reference, quoted id, forwarded flag.
func parseBody(msg *waE2E.Message) *store.Message {
	m := &store.Message{Type: detectType(msg)}
	if msg == nil {
		return m
	}

	switch m.Type {
	case store.TypeText:
		if c := msg.GetConversation(); c != "" {
			m.Caption = c
		} else if ext := msg.GetExtendedTextMessage(); ext != nil {
			m.Caption = ext.GetText()
			m.QuotedID = ext.GetContextInfo().GetStanzaID()
			m.Forwarded = ext.GetContextInfo().GetIsForwarded()
		}
	case store.TypeImage:
		img := msg.GetImageMessage()
		m.Caption = img.GetCaption()
		m.Mime = img.GetMimetype()
		m.Media = mediaRef(whatsmeow.MediaImage, img.GetURL(), img.GetDirectPath(), img.GetMediaKey(), img.GetFileSHA256(), img.GetFileEncSHA256(), img.GetFileLength())
		m.QuotedID = img.GetContextInfo().GetStanzaID()
		m.Forwarded = img.GetContextInfo().GetIsForwarded()
	case store.TypeVideo:
		vid := msg.GetVideoMessage()
		m.Caption = vid.GetCaption()
		m.Mime = vid.GetMimetype()
		m.Media = mediaRef(whatsmeow.MediaVideo, vid.GetURL(), vid.GetDirectPath(), vid.GetMediaKey(), vid.GetFileSHA256(), vid.GetFileEncSHA256(), vid.GetFileLength())
		m.QuotedID = vid.GetContextInfo().GetStanzaID()
		m.Forwarded = vid.GetContextInfo().GetIsForwarded()
	case store.TypeAudio:
		aud := msg.GetAudioMessage()
		m.Mime = aud.GetMimetype()
		m.Media = mediaRef(whatsmeow.MediaAudio, aud.GetURL(), aud.GetDirectPath(), aud.GetMediaKey(), aud.GetFileSHA256(), aud.GetFileEncSHA256(), aud.GetFileLength())
	case store.TypeDocument:
		doc := msg.GetDocumentMessage()
		m.Caption = doc.GetCaption()
		m.Mime = doc.GetMimetype()
		m.Media = mediaRef(whatsmeow.MediaDocument, doc.GetURL(), doc.GetDirectPath(), doc.GetMediaKey(), doc.GetFileSHA256(), doc.GetFileEncSHA256(), doc.GetFileLength())
	case store.TypeSticker:
		st := msg.GetStickerMessage()
		m.Mime = st.GetMimetype()
		m.Media = mediaRef(whatsmeow.MediaImage, st.GetURL(), st.GetDirectPath(), st.GetMediaKey(), st.GetFileSHA256(), st.GetFileEncSHA256(), st.GetFileLength())
	case store.TypeLocation:
		loc := msg.GetLocationMessage()
		m.Location = &store.Location{
			Latitude:  loc.GetDegreesLatitude(),
			Longitude: loc.GetDegreesLongitude(),
			Name:      loc.GetName(),
		}
		m.Caption = loc.GetName()
	case store.TypePoll:
		poll := pollCreation(msg)
		options := make([]string, 0, len(poll.GetOptions()))
		for _, opt := range poll.GetOptions() {
			options = append(options, opt.GetOptionName())
		}
		m.Caption = poll.GetName()
		m.Poll = &store.PollCreate{Question: poll.GetName(), Options: options}
	}
	return m
}

func detectType(msg *waE2E.Message) string {
	if msg == nil {
		return store.TypeUnknown
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return store.TypeText
	case msg.GetImageMessage() != nil:
		return store.TypeImage
	case msg.GetVideoMessage() != nil:
		return store.TypeVideo
	case msg.GetAudioMessage() != nil:
		return store.TypeAudio
	case msg.GetDocumentMessage() != nil:
		return store.TypeDocument
	case msg.GetStickerMessage() != nil:
		return store.TypeSticker
	case msg.GetLocationMessage() != nil:
		return store.TypeLocation
	case pollCreation(msg) != nil:
		return store.TypePoll
	default:
		return store.TypeUnknown
	}
}

func pollCreation(msg *waE2E.Message) *waE2E.PollCreationMessage {
	if p := msg.GetPollCreationMessage(); p != nil {
		return p
	}
	return msg.GetPollCreationMessageV3()
}

func mediaRef(mt whatsmeow.MediaType, url, directPath string, key, sha, encSHA []byte, length uint64) *store.MediaRef {
	return &store.MediaRef{
		URL:           url,
		DirectPath:    directPath,
		MediaKey:      key,
		FileSHA256:    sha,
		FileEncSHA256: encSHA,
		Length:        length,
		MediaType:     string(mt),
	}
}

func expirationSeconds(msg *waE2E.Message) int64 {
	if msg == nil {
		return 0
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return int64(ext.GetContextInfo().GetExpiration())
	}
	if img := msg.GetImageMessage(); img != nil {
		return int64(img.GetContextInfo().GetExpiration())
	}
	return 0
}

// receiptStatus maps a protocol receipt type to a message status, or -1
// for receipt kinds that carry no delivery-state change.
func receiptStatus(t types.ReceiptType) int {
	switch t {
	case types.ReceiptTypeDelivered:
		return store.StatusDelivered
	case types.ReceiptTypeRead:
		return store.StatusRead
	case types.ReceiptTypePlayed:
		return store.StatusPlayed
	default:
		return -1
	}
}

// editTarget extracts the target identity and replacement caption from an
// edit-carrying protocol message. ok is false when the payload has no
// usable edit.
func editTarget(chatID string, prot *waE2E.ProtocolMessage) (edit RawMessageEdit, ok bool) {
	edited := prot.GetEditedMessage()
	if edited == nil {
		return edit, false
	}
	body := edited.GetConversation()
	if body == "" {
		body = edited.GetExtendedTextMessage().GetText()
	}
	return RawMessageEdit{
		ChatID:  chatID,
		ID:      prot.GetKey().GetID(),
		Caption: body,
	}, true
}
