package store

import "strings"

// GroupServer is the JID server suffix that marks a group chat.
const GroupServer = "g.us"

// Message delivery states. Ordering is advisory: the pipeline applies
// status updates last-write-wins, so a regression can be stored as
// received.
const (
	StatusPending   = 0
	StatusSent      = 1
	StatusDelivered = 2
	StatusRead      = 3
	StatusPlayed    = 4
)

// Message content types.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeDocument = "document"
	TypeSticker  = "sticker"
	TypeLocation = "location"
	TypePoll     = "poll"
	TypeUnknown  = "unknown"
)

// Contact is a synced contact. Upserts merge: only non-zero incoming
// fields overwrite what is stored.
type Contact struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Photo      *string `json:"photo,omitempty"`
	CustomName string  `json:"custom_name,omitempty"`
	Me         bool    `json:"me,omitempty"`
}

// PhoneFromID derives the phone number from a user JID ("5511...@s.whatsapp.net").
func PhoneFromID(id string) string {
	user, _, _ := strings.Cut(id, "@")
	return user
}

// Chat is a synced conversation. Whether it is a group is a pure function
// of the ID and is never stored, so it cannot drift from the identity.
type Chat struct {
	ID            string            `json:"id"`
	Name          string            `json:"name,omitempty"`
	Pinned        int64             `json:"pinned,omitempty"`
	Archived      bool              `json:"archived,omitempty"`
	MutedUntil    int64             `json:"muted_until,omitempty"`
	LastMessageAt int64             `json:"last_message_at,omitempty"`
	Raw           map[string]string `json:"raw,omitempty"`
}

// IsGroup reports whether the chat ID names a group.
func (c *Chat) IsGroup() bool {
	_, server, _ := strings.Cut(c.ID, "@")
	return server == GroupServer
}

// MediaRef carries everything needed to download a media payload later.
type MediaRef struct {
	URL           string `json:"url,omitempty"`
	DirectPath    string `json:"direct_path,omitempty"`
	MediaKey      []byte `json:"media_key,omitempty"`
	FileSHA256    []byte `json:"file_sha256,omitempty"`
	FileEncSHA256 []byte `json:"file_enc_sha256,omitempty"`
	Length        uint64 `json:"length,omitempty"`
	MediaType     string `json:"media_type,omitempty"`
}

// PollCreate is the immutable part of a poll message: the question, the
// options, and the secret used to decrypt incoming votes.
type PollCreate struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Secret   []byte   `json:"secret,omitempty"`
}

// Location is a shared coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// Message is a synced message, unique per (ChatID, ID).
type Message struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"cid"`
	QuotedID   string      `json:"mid,omitempty"`
	Sender     string      `json:"sender,omitempty"`
	SenderName string      `json:"sender_name,omitempty"`
	FromMe     bool        `json:"me,omitempty"`
	Type       string      `json:"type"`
	Mime       string      `json:"mime,omitempty"`
	Caption    string      `json:"caption,omitempty"`
	Status     int         `json:"status"`
	Starred    bool        `json:"starred,omitempty"`
	Forwarded  bool        `json:"forwarded,omitempty"`
	Edited     bool        `json:"edited,omitempty"`
	CreatedAt  int64       `json:"created_at"`
	ExpiresAt  int64       `json:"deleted_at,omitempty"`
	Media      *MediaRef   `json:"media,omitempty"`
	Poll       *PollCreate `json:"poll,omitempty"`
	Location   *Location   `json:"location,omitempty"`
}
