package audit

import (
	"context"
	"time"

	"github.com/fedbook/fedbook/internal/graph"
)

// Store persists audit events to the lifecycle event graph.
type Store struct {
	db graph.Driver
}

// NewStore creates a new audit store.
func NewStore(db graph.Driver) *Store {
	return &Store{db: db}
}

// Save persists an audit event, linked to its training session node.
func (s *Store) Save(ctx context.Context, event *Event) error {
	query := `
		MERGE (sess:TrainingSession {session_id: $session_id})
		CREATE (e:LifecycleEvent {
			event_id: $event_id,
			category: $category,
			operation: $operation,
			cell_id: $cell_id,
			status: $status,
			error_message: $error_message,
			detail: $detail,
			started_at: $started_at,
			completed_at: $completed_at,
			duration_ms: $duration_ms
		})
		CREATE (sess)-[:LOGGED]->(e)
	`

	return s.db.ExecuteWrite(ctx, query, map[string]any{
		"session_id":    event.SessionID,
		"event_id":      event.EventID,
		"category":      string(event.Category),
		"operation":     event.Operation,
		"cell_id":       event.CellID,
		"status":        string(event.Status),
		"error_message": event.ErrorMessage,
		"detail":        event.Detail,
		"started_at":    event.StartedAt.UTC().Format(time.RFC3339),
		"completed_at":  event.CompletedAt.UTC().Format(time.RFC3339),
		"duration_ms":   event.DurationMs,
	})
}

// RecentEvents returns the latest events for a session, newest first.
func (s *Store) RecentEvents(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	query := `
		MATCH (sess:TrainingSession {session_id: $session_id})-[:LOGGED]->(e:LifecycleEvent)
		RETURN e.event_id AS event_id, e.category AS category, e.operation AS operation,
		       e.cell_id AS cell_id, e.status AS status, e.error_message AS error_message,
		       e.detail AS detail, e.started_at AS started_at, e.duration_ms AS duration_ms
		ORDER BY e.started_at DESC
		LIMIT $limit
	`
	records, err := s.db.Execute(ctx, query, map[string]any{
		"session_id": sessionID,
		"limit":      limit,
	})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(records))
	for _, r := range records {
		e := Event{
			EventID:      recordString(r, "event_id"),
			Category:     Category(recordString(r, "category")),
			Operation:    recordString(r, "operation"),
			SessionID:    sessionID,
			CellID:       recordString(r, "cell_id"),
			Status:       Status(recordString(r, "status")),
			ErrorMessage: recordString(r, "error_message"),
			Detail:       recordString(r, "detail"),
			DurationMs:   recordInt64(r, "duration_ms"),
		}
		if ts, parseErr := time.Parse(time.RFC3339, recordString(r, "started_at")); parseErr == nil {
			e.StartedAt = ts
		}
		events = append(events, e)
	}
	return events, nil
}

func recordString(r graph.Record, key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

func recordInt64(r graph.Record, key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
