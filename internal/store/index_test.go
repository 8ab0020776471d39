package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestIndexPaginateDescending(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Insert out of order; pagination must come back newest first.
	adds := []struct {
		mid string
		ts  int64
	}{
		{"m3", 300}, {"m1", 100}, {"m5", 500}, {"m2", 200}, {"m4", 400},
	}
	for _, a := range adds {
		if err := s.indexAdd(ctx, "c1", a.mid, a.ts); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.MessageIDs(ctx, "c1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m5", "m4", "m3", "m2", "m1"}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids, want %d", len(ids), len(want))
	}
	for i, w := range want {
		if ids[i] != w {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], w)
		}
	}

	page, err := s.MessageIDs(ctx, "c1", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0] != "m4" || page[1] != "m3" {
		t.Errorf("page(1,2) = %v, want [m4 m3]", page)
	}
}

func TestIndexDuplicateAdd(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.indexAdd(ctx, "c1", "m1", 100); err != nil {
		t.Fatal(err)
	}
	// Same mid again: replace in place, never a second entry.
	if err := s.indexAdd(ctx, "c1", "m1", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.indexAdd(ctx, "c1", "m1", 250); err != nil {
		t.Fatal(err)
	}
	if err := s.indexAdd(ctx, "c1", "m2", 200); err != nil {
		t.Fatal(err)
	}

	n, err := s.CountMessages(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2 (duplicate mid created extra entries)", n)
	}
	ids, err := s.MessageIDs(ctx, "c1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ids[0] != "m1" || ids[1] != "m2" {
		t.Errorf("ids = %v, want [m1 m2] (m1 moved to ts 250)", ids)
	}
}

func TestIndexEqualTimestampsStable(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, mid := range []string{"a", "b", "c", "d"} {
		if err := s.indexAdd(ctx, "c1", mid, 100); err != nil {
			t.Fatal(err)
		}
	}

	first, err := s.MessageIDs(ctx, "c1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	for range 10 {
		again, err := s.MessageIDs(ctx, "c1", 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("order of equal timestamps changed between reads: %v vs %v", again, first)
			}
		}
	}
}

func TestIndexRemove(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, mid := range []string{"m1", "m2", "m3"} {
		if err := s.indexAdd(ctx, "c1", mid, int64(i*100)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.indexRemove(ctx, "c1", "m2"); err != nil {
		t.Fatal(err)
	}
	ids, err := s.MessageIDs(ctx, "c1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "m3" || ids[1] != "m1" {
		t.Errorf("ids = %v, want [m3 m1]", ids)
	}

	// Removing the rest drops the record entirely.
	_ = s.indexRemove(ctx, "c1", "m1")
	_ = s.indexRemove(ctx, "c1", "m3")
	if _, ok, _ := s.kv.Get(ctx, indexKey("c1")); ok {
		t.Error("empty index record should be deleted")
	}
}

func TestIndexConcurrentAdds(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.indexAdd(ctx, "c1", fmt.Sprintf("m%02d", i), int64(i))
		}()
	}
	wg.Wait()

	count, err := s.CountMessages(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if count != n {
		t.Fatalf("count = %d, want %d (concurrent adds corrupted the index)", count, n)
	}
	ids, err := s.MessageIDs(ctx, "c1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Descending timestamps means m49 first.
	if ids[0] != "m49" || ids[n-1] != "m00" {
		t.Errorf("ids[0]=%q ids[last]=%q, want m49 ... m00", ids[0], ids[n-1])
	}
}
