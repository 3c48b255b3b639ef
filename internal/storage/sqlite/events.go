package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/swarm/internal/events"
)

// StoreEvent appends an event to the event log
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.Event) error {
	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (
			id, run_id, type, timestamp, file, agent, model,
			action, severity, status, message, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID, event.RunID, string(event.Type), formatTime(event.Timestamp),
		event.File, event.Agent, event.Model,
		string(event.Action), string(event.Severity), string(event.Status),
		event.Message, string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, file=%s): %w", event.Type, event.File, err)
	}
	return nil
}

// GetEvents returns a run's events in the order they were stored.
// limit <= 0 returns every event.
func (s *SQLiteStorage) GetEvents(ctx context.Context, runID string, limit int) ([]*events.Event, error) {
	query := `
		SELECT id, run_id, type, timestamp, file, agent, model,
		       action, severity, status, message, data
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*events.Event, error) {
	var result []*events.Event
	for rows.Next() {
		var (
			event                                  events.Event
			eventType, timestamp, action, severity string
			status, dataJSON                       string
		)
		err := rows.Scan(
			&event.ID, &event.RunID, &eventType, &timestamp,
			&event.File, &event.Agent, &event.Model,
			&action, &severity, &status, &event.Message, &dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Type = events.EventType(eventType)
		event.Action = events.Action(action)
		event.Severity = events.EventSeverity(severity)
		event.Status = events.Status(status)
		if event.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		if dataJSON != "" && dataJSON != "{}" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return result, nil
}
