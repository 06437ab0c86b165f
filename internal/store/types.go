package store

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a connection.
type Status string

const (
	StatusUnpaired      Status = "UNPAIRED"
	StatusPairing       Status = "PAIRING"
	StatusAuthenticated Status = "AUTHENTICATED"
	StatusConnected     Status = "CONNECTED"
	StatusFailed        Status = "FAILED"
)

// Connection is one user-initiated pairing attempt against a provider
// instance. The row outlives the live in-process handle: on restart the
// stored rows are used to re-initiate pairing.
type Connection struct {
	// ID doubles as the provider instance name.
	ID          string `db:"id" json:"id"`
	OwnerID     string `db:"owner_id" json:"owner_id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`

	Status Status `db:"status" json:"status"`

	// PairingPayload is the opaque QR/pairing-code blob, present only
	// while pairing.
	PairingPayload string `db:"pairing_payload" json:"pairing_payload,omitempty"`

	// RetryCount is the consecutive authentication failures since the
	// last success.
	RetryCount int `db:"retry_count" json:"retry_count"`

	// Token is the per-instance provider credential issued at create.
	Token string `db:"token" json:"-"`

	// SerializedState is a diagnostic snapshot of provider-side session
	// material. Never used for reconstruction; a restart re-pairs.
	SerializedState string `db:"serialized_state" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Active reports whether the connection counts as active (any non-empty
// status that is not FAILED).
func (c *Connection) Active() bool {
	return c.Status != "" && c.Status != StatusFailed
}

// Chat is a resolved group or contact persisted after synchronization.
type Chat struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ExternalID   string    `db:"external_id" json:"external_id"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	IsGroup      bool      `db:"is_group" json:"is_group"`
	ConnectionID string    `db:"connection_id" json:"connection_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
