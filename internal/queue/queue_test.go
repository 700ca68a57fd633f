package queue

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"latentfm/pkg/logx"
)

func testLogger() logx.Logger { return logx.Nop() }

func TestNextID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		q    Queue
		want int
	}{
		{name: "empty", q: Queue{}, want: 1},
		{name: "nil", q: nil, want: 1},
		{name: "sequential", q: Queue{{ID: 1}, {ID: 2}, {ID: 3}}, want: 4},
		{name: "gaps", q: Queue{{ID: 2}, {ID: 7}}, want: 8},
		{name: "unordered", q: Queue{{ID: 9}, {ID: 4}}, want: 10},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.NextID(); got != tt.want {
				t.Fatalf("NextID() = %d, want %d", got, tt.want)
			}
			for _, p := range tt.q {
				if tt.q.NextID() <= p.ID {
					t.Fatalf("NextID() = %d not greater than existing id %d", tt.q.NextID(), p.ID)
				}
			}
		})
	}
}

func TestNextUnpublished(t *testing.T) {
	t.Parallel()

	q := Queue{
		{ID: 1, Text: "a", Published: true},
		{ID: 2, Text: "b", Published: false},
		{ID: 3, Text: "c", Published: false},
	}
	p, ok := q.NextUnpublished()
	if !ok {
		t.Fatal("expected an unpublished post")
	}
	if p.ID != 2 {
		t.Fatalf("NextUnpublished() id = %d, want 2", p.ID)
	}
	if p.Published {
		t.Fatal("NextUnpublished() returned a published post")
	}

	if _, ok := (Queue{}).NextUnpublished(); ok {
		t.Fatal("empty queue should have no next post")
	}
	allDone := Queue{{ID: 1, Published: true}}
	if _, ok := allDone.NextUnpublished(); ok {
		t.Fatal("fully published queue should have no next post")
	}
}

func TestRecentTexts(t *testing.T) {
	t.Parallel()

	q := Queue{
		{ID: 1, Text: "one"},
		{ID: 2, Text: ""},
		{ID: 3, Text: "three"},
		{ID: 4, Text: "four"},
	}
	got := q.RecentTexts(2)
	if len(got) != 2 || got[0] != "three" || got[1] != "four" {
		t.Fatalf("RecentTexts(2) = %v", got)
	}
	if got := q.RecentTexts(10); len(got) != 3 {
		t.Fatalf("RecentTexts(10) = %v, want all 3 text-bearing posts", got)
	}
	if got := q.RecentTexts(0); got != nil {
		t.Fatalf("RecentTexts(0) = %v, want nil", got)
	}
}

func TestDisplayTitle(t *testing.T) {
	t.Parallel()
	if got := (Post{Title: "  "}).DisplayTitle(); got != "Untitled" {
		t.Fatalf("DisplayTitle() = %q", got)
	}
	if got := (Post{Title: "Hello"}).DisplayTitle(); got != "Hello" {
		t.Fatalf("DisplayTitle() = %q", got)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "content_queue.json"), testLogger())
}

func TestStoreLoadMissingFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	q, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(q) != 0 {
		t.Fatalf("Load() = %v, want empty queue", q)
	}
}

func TestStoreLoadMalformed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "content_queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path, testLogger())
	if _, err := s.Load(); err == nil {
		t.Fatal("expected parse error for malformed queue file")
	}
}

func TestStoreAppendAndRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first, err := s.Append("Generated", "first post")
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("first id = %d, want 1", first.ID)
	}
	second, err := s.Append("", "second post")
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("second id = %d, want 2", second.ID)
	}

	q, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(q) != 2 {
		t.Fatalf("len = %d, want 2", len(q))
	}
	tail := q[len(q)-1]
	if tail.ID != 2 || tail.Text != "second post" || tail.Published {
		t.Fatalf("tail = %+v", tail)
	}

	// save(load()) must reproduce an observably-equivalent queue.
	if err := s.Save(q); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	again, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(again) != len(q) {
		t.Fatalf("round-trip length = %d, want %d", len(again), len(q))
	}
	for i := range q {
		if again[i] != q[i] {
			t.Fatalf("round-trip post %d = %+v, want %+v", i, again[i], q[i])
		}
	}
}

func TestStoreMarkPublished(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p, err := s.Append("", "hello")
	if err != nil {
		t.Fatal(err)
	}

	found, err := s.MarkPublished(p.ID)
	if err != nil {
		t.Fatalf("MarkPublished error: %v", err)
	}
	if !found {
		t.Fatal("MarkPublished did not find the post")
	}

	// Stable under repeated loads.
	for i := 0; i < 3; i++ {
		q, err := s.Load()
		if err != nil {
			t.Fatal(err)
		}
		if !q[0].Published {
			t.Fatalf("load %d: published flag reverted", i)
		}
	}
}

func TestStoreMarkPublishedUnknownID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	if _, err := s.Append("", "hello"); err != nil {
		t.Fatal(err)
	}

	found, err := s.MarkPublished(99)
	if err != nil {
		t.Fatalf("MarkPublished error: %v", err)
	}
	if found {
		t.Fatal("unexpectedly found post 99")
	}
	// Still persists an (unchanged) snapshot.
	q, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 1 || q[0].Published {
		t.Fatalf("queue mutated by no-op mark: %+v", q)
	}
}

func TestStoreSaveAtomicFormat(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	if _, err := s.Append("Generated", "<b>bold</b> text"); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	// Human-readable indentation, one array of objects.
	if !strings.HasPrefix(string(b), "[\n  {") {
		t.Fatalf("unexpected file format:\n%s", b)
	}
	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".content_queue.json.") {
			t.Fatalf("stale temp file %s", e.Name())
		}
	}
}

// A publish and an append racing on the shared file must both survive.
func TestStoreConcurrentMarkAndAppend(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	if _, err := s.Append("", "a"); err != nil {
		t.Fatal(err)
	}
	target, err := s.Append("", "b")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := s.MarkPublished(target.ID); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := s.Append("Generated", "c"); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent mutation error: %v", err)
	}

	q, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 3 {
		t.Fatalf("len = %d, want 3 (append lost)", len(q))
	}
	var marked bool
	for _, p := range q {
		if p.ID == target.ID {
			marked = p.Published
		}
	}
	if !marked {
		t.Fatal("published flag lost in concurrent write")
	}
}

func TestStoreCountUnpublished(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	for _, text := range []string{"a", "b", "c"} {
		if _, err := s.Append("", text); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.MarkPublished(1); err != nil {
		t.Fatal(err)
	}
	n, err := s.CountUnpublished()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("CountUnpublished = %d, want 2", n)
	}
}
