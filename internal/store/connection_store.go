package store

import "context"

// ConnectionUpdate is a partial update of a connection row. Nil fields are
// left untouched. The implementation must apply all set fields in a single
// atomic statement: lifecycle events for one connection are applied in
// emission order and must not interleave half-written.
type ConnectionUpdate struct {
	Status          *Status
	PairingPayload  *string
	RetryCount      *int
	Token           *string
	SerializedState *string
}

// StatusOf returns a pointer to s, for building updates inline.
func StatusOf(s Status) *Status { return &s }

// StringOf returns a pointer to s.
func StringOf(s string) *string { return &s }

// IntOf returns a pointer to n.
func IntOf(n int) *int { return &n }

// ConnectionStore is the durable record of connection lifecycles.
type ConnectionStore interface {
	Create(ctx context.Context, c *Connection) error
	GetByID(ctx context.Context, id string) (*Connection, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Connection, error)
	GetAll(ctx context.Context) ([]Connection, error)
	Update(ctx context.Context, id string, upd ConnectionUpdate) error
	// CountActive counts connections with a non-empty status.
	CountActive(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}
