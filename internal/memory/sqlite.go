package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteLog is a SQLite-backed message log.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog creates a message log on the given database, creating
// the schema if needed.
func NewSQLiteLog(db *sql.DB) (*SQLiteLog, error) {
	log := &SQLiteLog{db: db}
	if err := log.migrate(); err != nil {
		return nil, fmt.Errorf("migrate messages: %w", err)
	}
	return log, nil
}

func (l *SQLiteLog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_messages (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_agent_messages_ts ON agent_messages(timestamp);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Append persists a message. Failures are wrapped as *PersistenceError.
func (l *SQLiteLog) Append(m Message) error {
	var metadata []byte
	if len(m.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(m.Metadata)
		if err != nil {
			return &PersistenceError{Op: "append", Err: fmt.Errorf("marshal metadata: %w", err)}
		}
	}

	_, err := l.db.Exec(`
		INSERT INTO agent_messages (id, role, content, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.Role, m.Content, m.Timestamp, nullableString(metadata))
	if err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}
	return nil
}

// Recent returns up to limit messages, oldest to newest. The query
// selects most-recent-first and reverses, so the window always holds
// the newest entries.
func (l *SQLiteLog) Recent(limit int) ([]Message, error) {
	rows, err := l.db.Query(`
		SELECT id, role, content, timestamp, metadata
		FROM agent_messages
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "recent", Err: err}
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Timestamp, &metadata); err != nil {
			return nil, &PersistenceError{Op: "recent", Err: err}
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
				return nil, &PersistenceError{Op: "recent", Err: fmt.Errorf("decode metadata: %w", err)}
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "recent", Err: err}
	}

	// Reverse into insertion order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
