// Package history implements local chat history persistence, backed by
// SQLite. The store only mirrors messages that passed through this
// process; it is a cache for the companion's REST and CLI surfaces, not
// a replica of the backend.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Message is one stored chat message.
type Message struct {
	ChannelID  string    `json:"channel_id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store wraps a SQLite database holding received and sent chat messages.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the history database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", dbPath, err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("history database ping failed: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("chat history database opened")
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id  TEXT NOT NULL,
		sender      TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		content     TEXT NOT NULL,
		timestamp   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_channel_time
		ON messages(channel_id, timestamp);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return nil
}

// Append stores one message.
func (s *Store) Append(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO messages (channel_id, sender, sender_name, content, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ChannelID, msg.Sender, msg.SenderName, msg.Content, msg.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// MessagesBefore returns up to limit messages of a channel older than the
// given instant, newest first.
func (s *Store) MessagesBefore(channelID string, before time.Time, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT channel_id, sender, sender_name, content, timestamp
		 FROM messages
		 WHERE channel_id = ? AND timestamp < ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		channelID, before.UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var ts int64
		if err := rows.Scan(&m.ChannelID, &m.Sender, &m.SenderName, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		m.Timestamp = time.UnixMilli(ts).UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Channels lists the channel ids with stored history.
func (s *Store) Channels() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT channel_id FROM messages ORDER BY channel_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		channels = append(channels, id)
	}
	return channels, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
