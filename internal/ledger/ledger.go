// Package ledger provides an append-only history of fired triggers and
// executed actions for auditing.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventTriggerFired    EventType = "trigger_fired"
	EventActionCompleted EventType = "action_completed"
	EventActionFailed    EventType = "action_failed"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	EventType EventType
	Timestamp time.Time
	FireID    string
	TriggerID int
	Source    string
	Payload   map[string]any
}

// Ledger provides append-only event logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// WithClock replaces the time source used for timestamps and retention cutoffs.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Append adds a new event to the ledger.
// triggerID is 0 for actions run outside a trigger.
func (l *Ledger) Append(eventType EventType, fireID string, triggerID int, source string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	_, err = l.db.Exec(
		`INSERT INTO event_ledger (event_type, timestamp, fire_id, trigger_id, source, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		string(eventType), l.now().UTC().Unix(), fireID, triggerID, source, string(payloadJSON),
	)
	return err
}

// CountFired returns how many times a trigger has fired.
func (l *Ledger) CountFired(triggerID int) (int, error) {
	var n int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM event_ledger
		WHERE trigger_id = ? AND event_type = ?
	`, triggerID, string(EventTriggerFired)).Scan(&n)
	return n, err
}

// Recent returns the most recent entries, newest first.
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, fire_id, trigger_id, source, payload
		FROM event_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByFire returns all entries recorded for one fire, oldest first.
func (l *Ledger) GetByFire(fireID string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, fire_id, trigger_id, source, payload
		FROM event_ledger
		WHERE fire_id = ?
		ORDER BY id ASC
	`, fireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, fire_id, trigger_id, source, payload
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM event_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, fireID, source sql.NullString
		var triggerID sql.NullInt64
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventType, &timestamp, &fireID, &triggerID, &source, &payloadStr,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if fireID.Valid {
			entry.FireID = fireID.String
		}
		if triggerID.Valid {
			entry.TriggerID = int(triggerID.Int64)
		}
		if source.Valid {
			entry.Source = source.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
