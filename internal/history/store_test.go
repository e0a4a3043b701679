package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{JobID: "job_1", Action: "download_stems", Title: "First", Outcome: OutcomeComplete},
		{JobID: "job_2", Action: "download_stems", Title: "Second", Outcome: OutcomeError, Detail: "demucs failed"},
		{JobID: "job_3", Action: "download_mp3", Title: "Third", Outcome: OutcomeCancelled},
	}
	for _, entry := range entries {
		if err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.List(ctx, 10, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].JobID != "job_3" || got[2].JobID != "job_1" {
		t.Fatalf("entries not newest-first: %v, %v", got[0].JobID, got[2].JobID)
	}
	if got[1].Detail != "demucs failed" {
		t.Fatalf("detail = %q", got[1].Detail)
	}
}

func TestListOnlyFailed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, entry := range []Entry{
		{JobID: "job_1", Action: "download_stems", Outcome: OutcomeComplete},
		{JobID: "job_2", Action: "download_stems", Outcome: OutcomeError},
		{JobID: "job_3", Action: "download_stems", Outcome: OutcomeInterrupted},
	} {
		if err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.List(ctx, 10, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d failed entries, want 2", len(got))
	}
	for _, entry := range got {
		if entry.Outcome == OutcomeComplete {
			t.Fatalf("complete entry leaked into failed listing: %+v", entry)
		}
	}
}

func TestListLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Record(ctx, Entry{JobID: "job", Action: "download_mp3", Outcome: OutcomeComplete}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	got, err := store.List(ctx, 2, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
}

func TestRecordStampsTimes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	if err := store.Record(ctx, Entry{JobID: "job_1", Action: "download_stems", Outcome: OutcomeComplete}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := store.List(ctx, 1, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].FinishedAt.Before(before) {
		t.Fatalf("finished_at not stamped: %v", got[0].FinishedAt)
	}
	if got[0].StartedAt.IsZero() {
		t.Fatal("started_at not stamped")
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Record(ctx, Entry{JobID: "job_1", Action: "download_stems", Outcome: OutcomeComplete}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.List(ctx, 10, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries after reopen, want 1", len(got))
	}
}
