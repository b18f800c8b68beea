package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tablemail/internal/model"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "tablemail.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndRecentRuns(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	first := model.RunRecord{
		StartedAt:   time.Date(2025, 9, 4, 8, 0, 0, 0, time.UTC),
		MessageID:   "msg-1",
		Subject:     "2025년09월04일 보고",
		SubjectDate: "20250904",
		Success:     true,
		Message:     "ok",
		OutputFiles: []string{"out/a.html", "out/a.xlsx"},
		Elapsed:     42 * time.Second,
	}
	second := model.RunRecord{
		StartedAt: time.Date(2025, 9, 5, 8, 0, 0, 0, time.UTC),
		Success:   false,
		Message:   "no messages",
	}

	if err := l.RecordRun(ctx, first); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := l.RecordRun(ctx, second); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	recs, err := l.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d runs, want 2", len(recs))
	}
	// newest first
	if recs[0].Success || recs[0].Message != "no messages" {
		t.Fatalf("unexpected newest run: %+v", recs[0])
	}
	got := recs[1]
	if got.MessageID != "msg-1" || got.SubjectDate != "20250904" || !got.Success {
		t.Fatalf("unexpected run: %+v", got)
	}
	if len(got.OutputFiles) != 2 || got.OutputFiles[1] != "out/a.xlsx" {
		t.Fatalf("output files = %v", got.OutputFiles)
	}
	if got.Elapsed != 42*time.Second {
		t.Fatalf("elapsed = %v", got.Elapsed)
	}
	if !got.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("started at = %v, want %v", got.StartedAt, first.StartedAt)
	}
}

func TestLastMessageID(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	id, err := l.LastMessageID(ctx)
	if err != nil {
		t.Fatalf("LastMessageID: %v", err)
	}
	if id != "" {
		t.Fatalf("fresh ledger returned %q", id)
	}

	if err := l.SetLastMessageID(ctx, "msg-9"); err != nil {
		t.Fatalf("SetLastMessageID: %v", err)
	}
	if err := l.SetLastMessageID(ctx, "msg-10"); err != nil {
		t.Fatalf("SetLastMessageID (update): %v", err)
	}

	id, err = l.LastMessageID(ctx)
	if err != nil {
		t.Fatalf("LastMessageID: %v", err)
	}
	if id != "msg-10" {
		t.Fatalf("got %q, want msg-10", id)
	}
}
