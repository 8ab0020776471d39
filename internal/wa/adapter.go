package wa

import (
	"context"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/wavault/internal/bus"
	"github.com/matheus3301/wavault/internal/session"
	"github.com/matheus3301/wavault/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client and manages the protocol connection.
// Everything above it sees raw events on the bus and the small command
// surface below; adapter call failures degrade, they never crash the
// reconciliation pipeline.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	session   string
}

// NewAdapter creates a new protocol adapter for the given session.
func NewAdapter(ctx context.Context, sessionName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("WaVault", [3]uint32{0, 1, 0})

	dbPath := session.SessionDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	return &Adapter{
		client:    client,
		container: container,
		bus:       b,
		logger:    logger,
		session:   sessionName,
	}, nil
}

// Client returns the underlying whatsmeow client.
func (a *Adapter) Client() *whatsmeow.Client {
	return a.client
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the protocol connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting protocol session")
	return a.client.Connect()
}

// Disconnect terminates the protocol connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting protocol session")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText sends a text message to the given chat. Returns the server
// message ID.
func (a *Adapter) SendText(ctx context.Context, chatID string, text string) (string, error) {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// MarkRead reports the given messages of a chat as read.
func (a *Adapter) MarkRead(ctx context.Context, chatID, senderID string, ids []string) error {
	chat, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse chat JID: %w", err)
	}
	sender, err := types.ParseJID(senderID)
	if err != nil {
		return fmt.Errorf("parse sender JID: %w", err)
	}
	mids := make([]types.MessageID, len(ids))
	for i, id := range ids {
		mids[i] = types.MessageID(id)
	}
	return a.client.MarkRead(ctx, mids, time.Now(), chat, sender)
}

// FetchMedia downloads the bytes behind a stored media reference. This is
// the expensive external call the content cache invokes at most once per
// message.
func (a *Adapter) FetchMedia(ctx context.Context, ref *store.MediaRef) ([]byte, error) {
	data, err := a.client.DownloadMediaWithPath(ctx,
		ref.DirectPath,
		ref.FileEncSHA256,
		ref.FileSHA256,
		ref.MediaKey,
		int(ref.Length),
		whatsmeow.MediaType(ref.MediaType),
		"",
	)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return data, nil
}

// GroupInfo fetches group membership and metadata from the server.
func (a *Adapter) GroupInfo(ctx context.Context, chatID string) (*types.GroupInfo, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return nil, fmt.Errorf("parse group JID: %w", err)
	}
	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get group info: %w", err)
	}
	return info, nil
}

// SyncGroupName fetches group metadata and feeds the display name through
// the pipeline as a regular chat update.
func (a *Adapter) SyncGroupName(ctx context.Context, chatID string) error {
	info, err := a.GroupInfo(ctx, chatID)
	if err != nil {
		return err
	}
	name := info.GroupName.Name
	a.bus.Publish(bus.Event{
		Kind:      KindChatUpdate,
		Timestamp: time.Now(),
		Payload:   RawChatUpdate{ID: chatID, Name: &name},
	})
	return nil
}

// SeedContacts publishes every contact known to the device store onto the
// bus, so the pipeline fills the normalized model right after connecting
// instead of waiting for individual contact events.
func (a *Adapter) SeedContacts(ctx context.Context) {
	contacts := a.Contacts(ctx)
	for _, c := range contacts {
		a.bus.Publish(bus.Event{Kind: KindContact, Timestamp: time.Now(), Payload: c})
	}
	if len(contacts) > 0 {
		a.logger.Info("seeded device store contacts", zap.Int("count", len(contacts)))
	}
}

// Contacts returns all contacts known to the whatsmeow device store, used
// to seed the normalized model after pairing.
func (a *Adapter) Contacts(ctx context.Context) []RawContact {
	all, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to read device store contacts", zap.Error(err))
		return nil
	}
	var contacts []RawContact
	for jid, info := range all {
		name := info.FullName
		if name == "" {
			name = info.PushName
		}
		contacts = append(contacts, RawContact{
			ID:   jid.ToNonAD().String(),
			Name: name,
		})
	}
	return contacts
}

// PhoneNumber returns the account's own phone number, or "" before pairing.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}
