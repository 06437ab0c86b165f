package session

import "github.com/waplink/waplink/internal/provider"

// EventKind names a provider lifecycle signal. The engines' callback-style
// events (QR refresh, readiness, auth failure) are normalized into these
// and dispatched through Manager.Apply, the single mutation point per
// connection.
type EventKind string

const (
	// EventPairingPayload — the engine issued or refreshed pairing
	// material (QR / pairing code).
	EventPairingPayload EventKind = "pairing_payload"
	// EventAuthenticated — the engine accepted the pairing.
	EventAuthenticated EventKind = "authenticated"
	// EventConnected — the instance is live and ready to send.
	EventConnected EventKind = "connected"
	// EventAuthFailure — the engine rejected the pairing.
	EventAuthFailure EventKind = "auth_failure"
)

// Event is one lifecycle signal for a connection.
type Event struct {
	Kind EventKind

	// Payload is set for EventPairingPayload.
	Payload *provider.PairingPayload

	// SerializedState is the diagnostic snapshot stored on
	// EventConnected.
	SerializedState string

	// Err is the cause carried by EventAuthFailure.
	Err error
}
