package store

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRecordUnknownAndListPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if err := s.RecordUnknown(ctx, "ex-1", "zorbitis", "patient reports zorbitis", at); err != nil {
		t.Fatalf("RecordUnknown: %v", err)
	}

	entries, err := s.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("pending entries = %d, want 1", len(entries))
	}

	e := entries[0]
	if e.Mention != "zorbitis" {
		t.Errorf("mention = %q, want zorbitis", e.Mention)
	}
	if e.Status != StatusPending {
		t.Errorf("status = %q, want %q", e.Status, StatusPending)
	}
	if e.ExtractionID != "ex-1" {
		t.Errorf("extraction_id = %q, want ex-1", e.ExtractionID)
	}
	if e.Timestamp != "2026-03-14 09:26:53" {
		t.Errorf("timestamp = %q, want fixed-layout wall clock", e.Timestamp)
	}
}

func TestRecordUnknownRejectsEmptyMention(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordUnknown(context.Background(), "ex-1", "", "ctx", time.Now()); err == nil {
		t.Fatal("expected error for empty mention")
	}
}

func TestLedgerIsAppendOnlyAcrossCalls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// The same mention from different extractions is NOT collapsed.
	for i := 0; i < 3; i++ {
		if err := s.RecordUnknown(ctx, "ex-1", "zorbitis", "ctx", time.Now().UTC()); err != nil {
			t.Fatalf("RecordUnknown %d: %v", i, err)
		}
	}

	entries, err := s.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("pending entries = %d, want 3", len(entries))
	}
}

func TestListPendingOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, m := range []string{"first", "second", "third"} {
		if err := s.RecordUnknown(ctx, "ex", m, "ctx", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordUnknown: %v", err)
		}
	}

	entries, err := s.ListPending(ctx, 2)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Mention != "first" || entries[1].Mention != "second" {
		t.Fatalf("order wrong: %q, %q", entries[0].Mention, entries[1].Mention)
	}
}

func TestResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordUnknown(ctx, "ex", "zorbitis", "ctx", time.Now().UTC()); err != nil {
		t.Fatalf("RecordUnknown: %v", err)
	}
	entries, _ := s.ListPending(ctx, 10)

	if err := s.Resolve(ctx, entries[0].ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	remaining, _ := s.ListPending(ctx, 10)
	if len(remaining) != 0 {
		t.Fatalf("pending after resolve = %d, want 0", len(remaining))
	}

	// Resolving again (or a bogus id) reports the miss.
	if err := s.Resolve(ctx, entries[0].ID); err == nil {
		t.Fatal("expected error resolving an already-resolved entry")
	}
	if err := s.Resolve(ctx, 9999); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestResolveMention(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.RecordUnknown(ctx, "ex", "zorbitis", "ctx", time.Now().UTC())
	}
	s.RecordUnknown(ctx, "ex", "glorbnax", "ctx", time.Now().UTC())

	n, err := s.ResolveMention(ctx, "zorbitis")
	if err != nil {
		t.Fatalf("ResolveMention: %v", err)
	}
	if n != 3 {
		t.Fatalf("resolved %d rows, want 3", n)
	}

	remaining, _ := s.ListPending(ctx, 10)
	if len(remaining) != 1 || remaining[0].Mention != "glorbnax" {
		t.Fatalf("unexpected pending set: %+v", remaining)
	}

	// No pending rows left for that mention.
	n, err = s.ResolveMention(ctx, "zorbitis")
	if err != nil || n != 0 {
		t.Fatalf("second ResolveMention = (%d, %v), want (0, nil)", n, err)
	}
}

func TestApprovalJournalRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := &Approval{
		Code:     "S00042",
		Mention:  "vertigo",
		Name:     "vertigo",
		Category: "neurological",
		Aliases:  []string{"the spins", "room spinning"},
	}
	id, err := s.AddApproval(ctx, in)
	if err != nil {
		t.Fatalf("AddApproval: %v", err)
	}
	if id == 0 {
		t.Fatal("AddApproval returned zero id")
	}

	s.AddApproval(ctx, &Approval{Code: "S00043", Mention: "tinnitus", Name: "tinnitus", Category: "ENT"})

	approvals, err := s.ListApprovals(ctx)
	if err != nil {
		t.Fatalf("ListApprovals: %v", err)
	}
	if len(approvals) != 2 {
		t.Fatalf("approvals = %d, want 2", len(approvals))
	}

	got := approvals[0]
	if got.Code != "S00042" || got.Mention != "vertigo" || got.Category != "neurological" {
		t.Fatalf("unexpected first approval: %+v", got)
	}
	if strings.Join(got.Aliases, ",") != "the spins,room spinning" {
		t.Fatalf("aliases = %v", got.Aliases)
	}
	if approvals[1].Mention != "tinnitus" {
		t.Fatalf("journal order wrong: %+v", approvals[1])
	}
}

func TestAddApprovalRejectsEmptyMention(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddApproval(context.Background(), &Approval{Name: "x"}); err == nil {
		t.Fatal("expected error for empty mention")
	}
}
