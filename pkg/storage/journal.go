package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// JournalEntry is one delivered gossip message as recorded on disk
type JournalEntry struct {
	ID          int64  `json:"id"`
	FromPeer    string `json:"from_peer"` // empty for locally originated gossip
	Fingerprint string `json:"fingerprint"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
	Timestamp   int64  `json:"timestamp"`
}

// GossipJournal persists delivered gossip messages. The journal is an
// observability surface: the engine never reads it back to make protocol
// decisions.
type GossipJournal struct {
	db     *sql.DB
	ttl    time.Duration
	stopCh chan struct{}
}

// NewGossipJournal opens (or creates) a journal database
// ttl: how long entries are retained (default: 7 days)
func NewGossipJournal(dbPath string, ttl time.Duration) (*GossipJournal, error) {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour // 7 days default
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %v", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %v", err)
	}

	journal := &GossipJournal{
		db:     db,
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}

	if err := journal.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	// Start background cleanup goroutine
	go journal.cleanupExpiredEntries()

	return journal, nil
}

// initSchema creates the database schema
func (j *GossipJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS gossip_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_peer TEXT NOT NULL,
		fingerprint TEXT UNIQUE NOT NULL,
		content_type TEXT NOT NULL,
		content BLOB NOT NULL,
		timestamp INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Index for the recent view
	CREATE INDEX IF NOT EXISTS idx_journal_timestamp ON gossip_journal(timestamp DESC);

	-- Index for expiration cleanup
	CREATE INDEX IF NOT EXISTS idx_journal_expires ON gossip_journal(expires_at);
	`

	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}

	return nil
}

// Record appends a delivered gossip message to the journal. The
// fingerprint is unique per content, so a message that falls off the
// dedup horizon and arrives again is recorded once.
func (j *GossipJournal) Record(from, fingerprint, contentType string, content []byte) error {
	now := time.Now().Unix()
	expiresAt := now + int64(j.ttl.Seconds())

	query := `
		INSERT OR IGNORE INTO gossip_journal (from_peer, fingerprint, content_type, content, timestamp, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := j.db.Exec(query, from, fingerprint, contentType, content, now, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to record gossip: %v", err)
	}

	return nil
}

// Recent returns the newest journal entries, most recent first
func (j *GossipJournal) Recent(limit int) ([]*JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, from_peer, fingerprint, content_type, content, timestamp
		FROM gossip_journal
		WHERE expires_at > ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := j.db.Query(query, time.Now().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %v", err)
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		entry := &JournalEntry{}
		if err := rows.Scan(&entry.ID, &entry.FromPeer, &entry.Fingerprint, &entry.ContentType, &entry.Content, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %v", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Lookup returns the journal entry for a fingerprint, or ErrNotFound
func (j *GossipJournal) Lookup(fingerprint string) (*JournalEntry, error) {
	query := `
		SELECT id, from_peer, fingerprint, content_type, content, timestamp
		FROM gossip_journal
		WHERE fingerprint = ?
	`

	entry := &JournalEntry{}
	err := j.db.QueryRow(query, fingerprint).Scan(
		&entry.ID, &entry.FromPeer, &entry.Fingerprint, &entry.ContentType, &entry.Content, &entry.Timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup journal entry: %v", err)
	}

	return entry, nil
}

// Count returns the number of live journal entries
func (j *GossipJournal) Count() (int, error) {
	query := `SELECT COUNT(*) FROM gossip_journal WHERE expires_at > ?`

	var count int
	if err := j.db.QueryRow(query, time.Now().Unix()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %v", err)
	}

	return count, nil
}

// cleanupExpiredEntries periodically removes entries past their TTL
func (j *GossipJournal) cleanupExpiredEntries() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result, err := j.db.Exec(`DELETE FROM gossip_journal WHERE expires_at <= ?`, time.Now().Unix())
			if err != nil {
				log.Printf("Failed to cleanup expired journal entries: %v", err)
				continue
			}

			if count, _ := result.RowsAffected(); count > 0 {
				log.Printf("🧹 Cleaned up %d expired journal entries", count)
			}

		case <-j.stopCh:
			return
		}
	}
}

// Close stops the cleanup goroutine and closes the database
func (j *GossipJournal) Close() error {
	close(j.stopCh)
	return j.db.Close()
}
