package store

import "context"

// ChatStore is the keyed store of resolved chats. ExternalID is globally
// unique: re-synchronizing a connection never duplicates rows.
type ChatStore interface {
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	// UpsertMany inserts the given chats, skipping rows whose external
	// ID already exists. Returns the number of rows actually inserted.
	UpsertMany(ctx context.Context, chats []Chat) (int, error)
	ListByConnection(ctx context.Context, connectionID string) ([]Chat, error)
	// DeleteByConnection removes a connection's chats (cascade on
	// connection deletion).
	DeleteByConnection(ctx context.Context, connectionID string) error
}
