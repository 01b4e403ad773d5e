// Package audit keeps an append-only trail of notable call events.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EventType names a call audit event.
type EventType string

const (
	EventTransferOffered  EventType = "call.transfer_offered"
	EventTransferAccepted EventType = "call.transfer_accepted"
	EventTransferDeclined EventType = "call.transfer_declined"
	EventLeadSaved        EventType = "call.lead_saved"
	EventLeadSaveFailed   EventType = "call.lead_save_failed"
	EventLeadRejected     EventType = "call.lead_rejected"
	EventDetailsDenied    EventType = "call.details_denied"
	EventSlotDefaulted    EventType = "call.slot_defaulted"
)

// CallEvent is an immutable audit record.
type CallEvent struct {
	ID          string          `json:"id"`
	EventType   EventType       `json:"event_type"`
	CallID      string          `json:"call_id"`
	Step        string          `json:"step,omitempty"`
	LeadID      string          `json:"lead_id,omitempty"`
	FilledSlots []string        `json:"filled_slots,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Service writes and reads call_audit_events.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogCallEvent records event. A nil service is a no-op.
func (s *Service) LogCallEvent(ctx context.Context, event CallEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.FilledSlots == nil {
		event.FilledSlots = []string{}
	}

	query := `
		INSERT INTO call_audit_events (
			id, event_type, call_id, step, lead_id, filled_slots, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.CallID,
		nullString(event.Step),
		nullString(event.LeadID),
		pq.Array(event.FilledSlots),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log call event: %w", err)
	}
	return nil
}

// ListByCall returns a call's events oldest first.
func (s *Service) ListByCall(ctx context.Context, callID string, limit int) ([]CallEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	query := `
		SELECT id, event_type, call_id, step, lead_id, filled_slots, details, created_at
		FROM call_audit_events
		WHERE call_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, callID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query call events: %w", err)
	}
	defer rows.Close()

	var events []CallEvent
	for rows.Next() {
		var e CallEvent
		var step, leadID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.CallID, &step, &leadID, pq.Array(&e.FilledSlots), &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan call event: %w", err)
		}
		e.Step = step.String
		e.LeadID = leadID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate call events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
