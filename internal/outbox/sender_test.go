package outbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wavault/internal/bus"
	"github.com/matheus3301/wavault/internal/engine/memkv"
	"github.com/matheus3301/wavault/internal/store"
)

// mockSender records calls and returns configurable results.
type mockSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
}

type sendCall struct {
	ChatID string
	Text   string
}

func (m *mockSender) SendText(_ context.Context, chatID string, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sendCall{ChatID: chatID, Text: text})
	if m.err != nil {
		return "", m.err
	}
	return "server-" + chatID, nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(memkv.New())
}

func TestSenderProcessesPending(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	b := bus.New()
	mock := &mockSender{}
	sender := NewSender(s, mock, b, zap.NewNop())

	ch, unsub := b.Subscribe("message.send_ack", 10)
	defer unsub()

	id, err := sender.Enqueue(ctx, "chat@s.whatsapp.net", "hello")
	if err != nil {
		t.Fatal(err)
	}
	sender.ProcessPending(ctx)

	if n := mock.callCount(); n != 1 {
		t.Fatalf("got %d send calls, want 1", n)
	}
	if mock.calls[0].ChatID != "chat@s.whatsapp.net" || mock.calls[0].Text != "hello" {
		t.Errorf("call = %+v", mock.calls[0])
	}

	pending, err := s.PendingOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 after send", len(pending))
	}

	select {
	case evt := <-ch:
		payload := evt.Payload.(map[string]string)
		if payload["client_id"] != id {
			t.Errorf("ack client_id = %q, want %q", payload["client_id"], id)
		}
	default:
		t.Fatal("no send_ack event")
	}

	// The optimistic message ends up stored as sent.
	m, err := s.GetMessage(ctx, "chat@s.whatsapp.net", id)
	if err != nil || m == nil {
		t.Fatalf("optimistic message missing: %v", err)
	}
	if m.Status != store.StatusSent || !m.FromMe || m.Caption != "hello" {
		t.Errorf("optimistic message = %+v", m)
	}
}

func TestSenderHandlesFailure(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	b := bus.New()
	mock := &mockSender{err: fmt.Errorf("network error")}
	sender := NewSender(s, mock, b, zap.NewNop())

	ch, unsub := b.Subscribe("message.send_failed", 10)
	defer unsub()

	id, err := sender.Enqueue(ctx, "chat@s.whatsapp.net", "hello")
	if err != nil {
		t.Fatal(err)
	}
	sender.ProcessPending(ctx)

	select {
	case evt := <-ch:
		payload := evt.Payload.(map[string]string)
		if payload["error"] != "network error" {
			t.Errorf("failure payload = %v", payload)
		}
	default:
		t.Fatal("no send_failed event")
	}

	// Marked failed, not re-queued.
	pending, err := s.PendingOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 (marked failed)", len(pending))
	}

	// The optimistic message stays pending rather than claiming delivery.
	m, _ := s.GetMessage(ctx, "chat@s.whatsapp.net", id)
	if m == nil || m.Status != store.StatusPending {
		t.Errorf("optimistic message after failure = %+v", m)
	}
}

func TestSenderDrainsOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	mock := &mockSender{}
	sender := NewSender(s, mock, bus.New(), zap.NewNop())

	for _, text := range []string{"one", "two", "three"} {
		if _, err := sender.Enqueue(ctx, "chat@s.whatsapp.net", text); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	sender.ProcessPending(ctx)

	if n := mock.callCount(); n != 3 {
		t.Fatalf("got %d send calls, want 3", n)
	}
	for i, want := range []string{"one", "two", "three"} {
		if mock.calls[i].Text != want {
			t.Errorf("call %d = %q, want %q", i, mock.calls[i].Text, want)
		}
	}
}

func TestSenderLoop(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	mock := &mockSender{}
	sender := NewSender(s, mock, bus.New(), zap.NewNop())

	if _, err := sender.Enqueue(ctx, "chat@s.whatsapp.net", "via loop"); err != nil {
		t.Fatal(err)
	}
	sender.Start(ctx)
	defer sender.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for mock.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sender loop never picked up the entry")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
