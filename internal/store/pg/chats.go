package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/waplink/waplink/internal/store"
)

// ChatStore implements store.ChatStore backed by Postgres. Idempotence
// rides on the external_id unique constraint: conflicting inserts are
// skipped, never updated, because resolved chats are immutable.
type ChatStore struct {
	db *sqlx.DB
}

func NewChatStore(db *sqlx.DB) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM chats WHERE external_id = $1)`, externalID)
	if err != nil {
		return false, fmt.Errorf("chat exists check: %w", err)
	}
	return exists, nil
}

func (s *ChatStore) UpsertMany(ctx context.Context, chats []store.Chat) (int, error) {
	if len(chats) == 0 {
		return 0, nil
	}

	inserted := 0
	for i := range chats {
		if chats[i].ID == uuid.Nil {
			chats[i].ID = store.GenNewID()
		}
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO chats (id, external_id, display_name, is_group, connection_id)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (external_id) DO NOTHING`,
			chats[i].ID, chats[i].ExternalID, chats[i].DisplayName, chats[i].IsGroup, chats[i].ConnectionID,
		)
		if err != nil {
			return inserted, fmt.Errorf("upsert chat %s: %w", chats[i].ExternalID, err)
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (s *ChatStore) ListByConnection(ctx context.Context, connectionID string) ([]store.Chat, error) {
	var chats []store.Chat
	err := s.db.SelectContext(ctx, &chats,
		`SELECT id, external_id, display_name, is_group, connection_id, created_at
		 FROM chats WHERE connection_id = $1 ORDER BY created_at`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (s *ChatStore) DeleteByConnection(ctx context.Context, connectionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE connection_id = $1`, connectionID)
	if err != nil {
		return fmt.Errorf("delete chats: %w", err)
	}
	return nil
}
