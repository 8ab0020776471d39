package daemon

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wavault/internal/bus"
	"github.com/matheus3301/wavault/internal/content"
	"github.com/matheus3301/wavault/internal/engine/memkv"
	"github.com/matheus3301/wavault/internal/lock"
	"github.com/matheus3301/wavault/internal/outbox"
	"github.com/matheus3301/wavault/internal/status"
	"github.com/matheus3301/wavault/internal/store"
	intsync "github.com/matheus3301/wavault/internal/sync"
	"github.com/matheus3301/wavault/internal/wa"
)

type stubFetcher struct{}

func (stubFetcher) FetchMedia(ctx context.Context, ref *store.MediaRef) ([]byte, error) {
	return []byte("media"), nil
}

type stubSender struct{ sent []string }

func (s *stubSender) SendText(_ context.Context, chatID, text string) (string, error) {
	s.sent = append(s.sent, text)
	return "server-1", nil
}

func testVault(t *testing.T) (*Vault, *store.Store, *bus.Bus, *stubSender) {
	t.Helper()
	s := store.New(memkv.New())
	b := bus.New()
	logger := zap.NewNop()
	resolver := content.NewResolver(s, stubFetcher{}, logger, time.Second)
	eng := intsync.NewEngine(s, b, resolver, logger)
	sink := &stubSender{}
	sender := outbox.NewSender(s, sink, b, logger)
	machine := status.NewMachine(b)
	return NewVault(s, resolver, sender, nil, machine, eng), s, b, sink
}

func TestVaultLifecycle(t *testing.T) {
	ctx := context.Background()
	v, _, _, _ := testVault(t)

	if v.Status() != status.Booting {
		t.Errorf("initial status = %s, want BOOTING", v.Status())
	}

	// Feed a raw message through the pipeline and query it back.
	eng := v.engine
	eng.Apply(ctx, bus.Event{Kind: wa.KindMessage, Payload: wa.RawMessage{Message: &store.Message{
		ID: "m1", ChatID: "c1@s.whatsapp.net", Type: store.TypeText, Caption: "hello", CreatedAt: 1000,
	}}})

	chats, err := v.Chats(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].ID != "c1@s.whatsapp.net" {
		t.Fatalf("chats = %+v", chats)
	}

	msgs, err := v.Messages(ctx, "c1@s.whatsapp.net", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Caption != "hello" {
		t.Fatalf("messages = %+v", msgs)
	}

	n, err := v.CountMessages(ctx, "c1@s.whatsapp.net")
	if err != nil || n != 1 {
		t.Errorf("count = %d err = %v, want 1", n, err)
	}

	data, err := v.Content(ctx, "c1@s.whatsapp.net", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want hello", data)
	}
}

func TestVaultSendText(t *testing.T) {
	ctx := context.Background()
	v, s, _, sink := testVault(t)

	id, err := v.SendText(ctx, "c1@s.whatsapp.net", "outgoing")
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty client ID")
	}

	pending, err := s.PendingOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Body != "outgoing" {
		t.Fatalf("pending = %+v", pending)
	}

	// One drain pass pushes it through the stub.
	v.sender.ProcessPending(ctx)
	if len(sink.sent) != 1 || sink.sent[0] != "outgoing" {
		t.Errorf("sent = %v", sink.sent)
	}
}

func TestVaultWaitSynced(t *testing.T) {
	ctx := context.Background()
	v, _, _, _ := testVault(t)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := v.WaitSynced(waitCtx); err == nil {
		t.Fatal("WaitSynced returned before history completed")
	}

	v.engine.Apply(ctx, bus.Event{Kind: wa.KindHistory, Payload: wa.RawHistoryBatch{Progress: 100}})

	waitCtx2, cancel2 := context.WithTimeout(ctx, time.Second)
	defer cancel2()
	if err := v.WaitSynced(waitCtx2); err != nil {
		t.Errorf("WaitSynced after completion: %v", err)
	}
}

// The session lock guards a single daemon per session directory; the
// module acquires it before anything touches the store.
func TestSessionLockExclusive(t *testing.T) {
	dir := t.TempDir()
	l, err := lock.Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Release() }()

	if _, err := lock.Acquire(dir); err == nil {
		t.Fatal("second acquire should fail while lock is held")
	}
}
