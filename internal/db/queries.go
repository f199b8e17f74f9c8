package db

import "fmt"

// PipelineEvent represents a row in the pipeline_events table.
type PipelineEvent struct {
	ID        int
	SessionID string
	Stage     string
	Event     string
	Detail    string
	Timestamp string
}

// LogEvent inserts a pipeline event for a session.
func (d *DB) LogEvent(sessionID, stage, event, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO pipeline_events (session_id, stage, event, detail) VALUES (?, ?, ?, ?)`,
		sessionID, stage, event, detail,
	)
	if err != nil {
		return fmt.Errorf("log pipeline event: %w", err)
	}
	return nil
}

// SessionEvents returns all events for a session in insertion order.
func (d *DB) SessionEvents(sessionID string) ([]PipelineEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, session_id, stage, event, COALESCE(detail, ''), timestamp
		 FROM pipeline_events WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// RecentEvents returns the most recent events across all sessions,
// newest first, capped at limit.
func (d *DB) RecentEvents(limit int) ([]PipelineEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, session_id, stage, event, COALESCE(detail, ''), timestamp
		 FROM pipeline_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows rowScanner) ([]PipelineEvent, error) {
	var events []PipelineEvent
	for rows.Next() {
		var e PipelineEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Stage, &e.Event, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pipeline event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline events: %w", err)
	}
	return events, nil
}
