package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shmeleva/TiKGingerbreadBot/competition"
)

func TestMemoryCurrentBatchFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.FindOrCreateUser(ctx, competition.User{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateDraft(ctx, 1); err != nil {
		t.Fatal(err)
	}

	t1 := time.Unix(100, 0)
	t2 := time.Unix(200, 0)
	for _, item := range []competition.MediaItem{
		{FileID: "a", Kind: competition.KindPhoto, SentAt: t1},
		{FileID: "b", Kind: competition.KindPhoto, SentAt: t2},
		{FileID: "c", Kind: competition.KindVideo, SentAt: t2},
	} {
		if err := m.AppendDraftMedia(ctx, 1, item); err != nil {
			t.Fatal(err)
		}
	}

	// No media date stamped yet: nothing is current.
	draft, ok, err := m.ReadDraft(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("ReadDraft: ok=%v err=%v", ok, err)
	}
	if len(draft.Media) != 0 {
		t.Fatalf("unstamped draft media: got %d items, want 0", len(draft.Media))
	}

	if err := m.UpdateDraftMediaDate(ctx, 1, t2); err != nil {
		t.Fatal(err)
	}
	draft, _, _ = m.ReadDraft(ctx, 1)
	if len(draft.Media) != 2 {
		t.Fatalf("current batch: got %d items, want 2", len(draft.Media))
	}
	for _, item := range draft.Media {
		if !item.SentAt.Equal(t2) {
			t.Fatalf("stale item in current batch: %+v", item)
		}
	}
}

func TestMemoryAppendWithoutDraftIsNoop(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.FindOrCreateUser(ctx, competition.User{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendDraftMedia(ctx, 1, competition.MediaItem{FileID: "a", Kind: competition.KindPhoto, SentAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := m.ReadDraft(ctx, 1); ok {
		t.Fatal("append must not create a draft")
	}
}

func TestMemoryFinalizeClearsDraftAndSnapshotsMedia(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.CreateDraft(ctx, 1); err != nil {
		t.Fatal(err)
	}
	at := time.Unix(100, 0)
	if err := m.AppendDraftMedia(ctx, 1, competition.MediaItem{FileID: "a", Kind: competition.KindPhoto, SentAt: at}); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateDraftMediaDate(ctx, 1, at); err != nil {
		t.Fatal(err)
	}

	draft, _, _ := m.ReadDraft(ctx, 1)
	sub, err := m.FinalizeSubmission(ctx, 1, draft)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Seq != 1 {
		t.Fatalf("seq: got %d, want 1", sub.Seq)
	}
	if _, ok, _ := m.ReadDraft(ctx, 1); ok {
		t.Fatal("draft survived finalize")
	}

	// Later draft edits must not alter the stored submission.
	if err := m.CreateDraft(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendDraftMedia(ctx, 1, competition.MediaItem{FileID: "b", Kind: competition.KindPhoto, SentAt: at}); err != nil {
		t.Fatal(err)
	}
	subs, _ := m.ListSubmissions(ctx, 1)
	if len(subs) != 1 || len(subs[0].Media) != 1 || subs[0].Media[0].FileID != "a" {
		t.Fatalf("submission media not a snapshot: %+v", subs)
	}
}

func TestMemoryConcurrentFinalizeYieldsUniqueSequences(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	const n = 64

	for i := 1; i <= n; i++ {
		if err := m.CreateDraft(ctx, int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	seqs := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sub, err := m.FinalizeSubmission(ctx, id, competition.Draft{UserID: id, Name: "x"})
			if err != nil {
				t.Errorf("finalize %d: %v", id, err)
				return
			}
			seqs <- sub.Seq
		}(int64(i))
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool, n)
	for s := range seqs {
		if seen[s] {
			t.Fatalf("duplicate sequence %d", s)
		}
		if s < 1 || s > n {
			t.Fatalf("sequence %d out of range", s)
		}
		seen[s] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d sequences, want %d", len(seen), n)
	}

	total, err := m.CountSubmissions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != n {
		t.Fatalf("CountSubmissions: got %d, want %d", total, n)
	}
}
