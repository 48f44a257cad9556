package audit

import "context"

type Store interface {
	Append(ctx context.Context, event Event) error
	// List returns the newest events first. An empty tenant lists every tenant.
	List(ctx context.Context, tenant string, limit int) ([]Event, error)
}
