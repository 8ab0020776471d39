// Package enginetest holds the conformance suite every engine driver must
// pass. Driver packages call Run from their own tests.
package enginetest

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/wavault/internal/engine"
)

// settle separates consecutive writes far enough apart that drivers using
// wall-clock modification stamps (file mtimes) order them deterministically.
func settle() { time.Sleep(15 * time.Millisecond) }

// Run executes the contract suite against a fresh driver per subtest.
func Run(t *testing.T, open func(t *testing.T) engine.KV) {
	ctx := context.Background()

	t.Run("get absent", func(t *testing.T) {
		kv := open(t)
		value, ok, err := kv.Get(ctx, "missing/key")
		if err != nil {
			t.Fatalf("Get on absent key returned error: %v", err)
		}
		if ok || value != nil {
			t.Errorf("Get absent = (%v, %v), want (nil, false)", value, ok)
		}
	})

	t.Run("set get round trip", func(t *testing.T) {
		kv := open(t)
		if err := kv.Set(ctx, "chat/c1", []byte(`{"name":"alice"}`)); err != nil {
			t.Fatal(err)
		}
		value, ok, err := kv.Get(ctx, "chat/c1")
		if err != nil {
			t.Fatal(err)
		}
		if !ok || string(value) != `{"name":"alice"}` {
			t.Errorf("Get = (%q, %v), want stored value", value, ok)
		}
	})

	t.Run("set nil deletes", func(t *testing.T) {
		kv := open(t)
		if err := kv.Set(ctx, "contact/x", []byte("a")); err != nil {
			t.Fatal(err)
		}
		if err := kv.Set(ctx, "contact/x", nil); err != nil {
			t.Fatal(err)
		}
		_, ok, err := kv.Get(ctx, "contact/x")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("key still present after Set(key, nil)")
		}
		// Deleting an absent key is a no-op, not an error.
		if err := kv.Set(ctx, "contact/x", nil); err != nil {
			t.Errorf("deleting absent key: %v", err)
		}
	})

	t.Run("identical rewrite is a no-op", func(t *testing.T) {
		kv := open(t)
		if err := kv.Set(ctx, "chat/a", []byte("old")); err != nil {
			t.Fatal(err)
		}
		settle()
		if err := kv.Set(ctx, "chat/b", []byte("new")); err != nil {
			t.Fatal(err)
		}
		settle()
		// Rewriting chat/a with the same bytes must not advance its stamp,
		// so chat/b stays the most recently modified.
		if err := kv.Set(ctx, "chat/a", []byte("old")); err != nil {
			t.Fatal(err)
		}
		recs, err := kv.List(ctx, "chat", 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 {
			t.Fatalf("got %d records, want 2", len(recs))
		}
		if recs[0].Key != "chat/b" {
			t.Errorf("most recent = %q, want chat/b (identical rewrite advanced the stamp)", recs[0].Key)
		}
	})

	t.Run("list orders most recent first", func(t *testing.T) {
		kv := open(t)
		for _, key := range []string{"chat/one", "chat/two", "chat/three"} {
			if err := kv.Set(ctx, key, []byte(key)); err != nil {
				t.Fatal(err)
			}
			settle()
		}
		recs, err := kv.List(ctx, "chat", 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"chat/three", "chat/two", "chat/one"}
		if len(recs) != len(want) {
			t.Fatalf("got %d records, want %d", len(recs), len(want))
		}
		for i, w := range want {
			if recs[i].Key != w {
				t.Errorf("recs[%d] = %q, want %q", i, recs[i].Key, w)
			}
		}
	})

	t.Run("list slices by offset and limit", func(t *testing.T) {
		kv := open(t)
		for _, key := range []string{"m/a", "m/b", "m/c", "m/d"} {
			if err := kv.Set(ctx, key, []byte("x")); err != nil {
				t.Fatal(err)
			}
			settle()
		}
		recs, err := kv.List(ctx, "m", 1, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 || recs[0].Key != "m/c" || recs[1].Key != "m/b" {
			t.Errorf("offset=1 limit=2 = %v, want [m/c m/b]", keysOf(recs))
		}
		recs, err = kv.List(ctx, "m", 10, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 0 {
			t.Errorf("offset past end returned %d records, want 0", len(recs))
		}
	})

	t.Run("list is stable across repeated reads", func(t *testing.T) {
		kv := open(t)
		for _, key := range []string{"s/a", "s/b", "s/c"} {
			if err := kv.Set(ctx, key, []byte("x")); err != nil {
				t.Fatal(err)
			}
		}
		first, err := kv.List(ctx, "s", 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		for range 5 {
			again, err := kv.List(ctx, "s", 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(again) != len(first) {
				t.Fatalf("length changed between reads: %d vs %d", len(again), len(first))
			}
			for i := range first {
				if again[i].Key != first[i].Key {
					t.Fatalf("order changed between reads at %d: %q vs %q", i, again[i].Key, first[i].Key)
				}
			}
		}
	})

	t.Run("prefix boundaries", func(t *testing.T) {
		kv := open(t)
		if err := kv.Set(ctx, "chat/c1", []byte("parent")); err != nil {
			t.Fatal(err)
		}
		if err := kv.Set(ctx, "chat/c1/message/m1", []byte("child")); err != nil {
			t.Fatal(err)
		}
		if err := kv.Set(ctx, "chat/c10", []byte("sibling")); err != nil {
			t.Fatal(err)
		}
		recs, err := kv.List(ctx, "chat/c1", 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		// chat/c10 is not under chat/c1.
		if len(recs) != 2 {
			t.Errorf("List(chat/c1) = %v, want parent and child only", keysOf(recs))
		}
	})

	t.Run("delete prefix cascades", func(t *testing.T) {
		kv := open(t)
		keys := []string{
			"chat/c1",
			"chat/c1/messages",
			"chat/c1/message/m1",
			"chat/c1/message/m1/content",
			"chat/c2",
		}
		for _, key := range keys {
			if err := kv.Set(ctx, key, []byte("x")); err != nil {
				t.Fatal(err)
			}
		}
		if err := kv.DeletePrefix(ctx, "chat/c1"); err != nil {
			t.Fatal(err)
		}
		for _, key := range keys[:4] {
			if _, ok, _ := kv.Get(ctx, key); ok {
				t.Errorf("%q survived DeletePrefix", key)
			}
		}
		if _, ok, _ := kv.Get(ctx, "chat/c2"); !ok {
			t.Error("chat/c2 was deleted by an unrelated cascade")
		}
	})
}

func keysOf(recs []engine.Record) []string {
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = r.Key
	}
	return keys
}
