package audit

import (
	"context"
	"fmt"
	"time"

	"clinictrack/internal/platform/database"
)

const eventColumns = `id, occurred_at, action, tenant_name, actor, subject, reason, request_id`

// SQLStore keeps events in the audit_events table.
type SQLStore struct {
	db database.Gateway
}

func NewSQLStore(db database.Gateway) *SQLStore {
	return &SQLStore{db: db}
}

type eventRow struct {
	ID         int64     `db:"id"`
	OccurredAt time.Time `db:"occurred_at"`
	Action     string    `db:"action"`
	Tenant     string    `db:"tenant_name"`
	Actor      string    `db:"actor"`
	Subject    string    `db:"subject"`
	Reason     string    `db:"reason"`
	RequestID  string    `db:"request_id"`
}

func (s *SQLStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.Run(ctx, `
		INSERT INTO audit_events (occurred_at, action, tenant_name, actor, subject, reason, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC(),
		string(event.Action),
		event.Tenant,
		event.Actor,
		event.Subject,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, tenant string, limit int) ([]Event, error) {
	var rows []eventRow
	var err error
	if tenant == "" {
		err = s.db.All(ctx, &rows,
			`SELECT `+eventColumns+` FROM audit_events ORDER BY id DESC LIMIT ?`, limit)
	} else {
		err = s.db.All(ctx, &rows,
			`SELECT `+eventColumns+` FROM audit_events WHERE tenant_name = ? ORDER BY id DESC LIMIT ?`, tenant, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, Event{
			ID:        r.ID,
			Timestamp: r.OccurredAt.UTC(),
			Action:    Action(r.Action),
			Tenant:    r.Tenant,
			Actor:     r.Actor,
			Subject:   r.Subject,
			Reason:    r.Reason,
			RequestID: r.RequestID,
		})
	}
	return events, nil
}
