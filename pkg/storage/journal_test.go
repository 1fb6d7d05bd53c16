package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestJournal(t *testing.T) *GossipJournal {
	t.Helper()

	journal, err := NewGossipJournal(filepath.Join(t.TempDir(), "journal.db"), time.Hour)
	if err != nil {
		t.Fatalf("NewGossipJournal failed: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	return journal
}

func TestJournalRecordAndLookup(t *testing.T) {
	journal := newTestJournal(t)

	content := []byte(`{"event":"join"}`)
	if err := journal.Record("node-a", "fp-abc", "test/event", content); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entry, err := journal.Lookup("fp-abc")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if entry.FromPeer != "node-a" {
		t.Fatalf("FromPeer = %q, want node-a", entry.FromPeer)
	}
	if entry.ContentType != "test/event" {
		t.Fatalf("ContentType = %q, want test/event", entry.ContentType)
	}
	if !bytes.Equal(entry.Content, content) {
		t.Fatalf("Content = %q, want %q", entry.Content, content)
	}
	if entry.Timestamp == 0 {
		t.Fatal("Timestamp not set")
	}
}

func TestJournalLookupUnknown(t *testing.T) {
	journal := newTestJournal(t)

	if _, err := journal.Lookup("fp-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup of unknown fingerprint = %v, want ErrNotFound", err)
	}
}

func TestJournalRecordDuplicateFingerprint(t *testing.T) {
	journal := newTestJournal(t)

	if err := journal.Record("node-a", "fp-dup", "test/event", []byte("first")); err != nil {
		t.Fatalf("first Record failed: %v", err)
	}
	// Same fingerprint again is a no-op, not an error.
	if err := journal.Record("node-b", "fp-dup", "test/event", []byte("second")); err != nil {
		t.Fatalf("duplicate Record failed: %v", err)
	}

	entry, err := journal.Lookup("fp-dup")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if entry.FromPeer != "node-a" {
		t.Fatalf("duplicate overwrote the original entry: FromPeer = %q", entry.FromPeer)
	}

	count, err := journal.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Count = %d, want 1", count)
	}
}

func TestJournalRecent(t *testing.T) {
	journal := newTestJournal(t)

	for i := 0; i < 5; i++ {
		fp := fmt.Sprintf("fp-%d", i)
		if err := journal.Record("node-a", fp, "test/event", []byte(fp)); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	entries, err := journal.Recent(3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(entries))
	}

	// Newest first: insertion order breaks the same-second timestamp tie.
	if entries[0].Fingerprint != "fp-4" {
		t.Fatalf("newest entry = %s, want fp-4", entries[0].Fingerprint)
	}

	all, err := journal.Recent(0)
	if err != nil {
		t.Fatalf("Recent(0) failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("Recent(0) returned %d entries, want 5", len(all))
	}
}

func TestJournalExpiry(t *testing.T) {
	journal, err := NewGossipJournal(filepath.Join(t.TempDir(), "journal.db"), time.Second)
	if err != nil {
		t.Fatalf("NewGossipJournal failed: %v", err)
	}
	defer journal.Close()

	if err := journal.Record("node-a", "fp-short", "test/event", []byte("x")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	// Expired entries are invisible even before the cleanup sweep.
	entries, err := journal.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Recent returned %d expired entries, want 0", len(entries))
	}

	count, err := journal.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Count = %d, want 0", count)
	}
}
