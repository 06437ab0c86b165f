package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/crypto"
	"github.com/waplink/waplink/internal/store"
)

// ConnectionStore implements store.ConnectionStore backed by Postgres.
// When encryptionKey is set, provider tokens are AES-GCM encrypted at rest.
type ConnectionStore struct {
	db            *sqlx.DB
	encryptionKey string
}

func NewConnectionStore(db *sqlx.DB, encryptionKey string) *ConnectionStore {
	return &ConnectionStore{db: db, encryptionKey: encryptionKey}
}

const connectionColumns = `id, owner_id, name, description, status, pairing_payload,
	retry_count, token, serialized_state, created_at, updated_at`

func (s *ConnectionStore) Create(ctx context.Context, c *store.Connection) error {
	if c.ID == "" {
		c.ID = store.GenNewID().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	token, err := crypto.Encrypt(c.Token, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO connections (`+connectionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.OwnerID, c.Name, c.Description, c.Status, c.PairingPayload,
		c.RetryCount, token, c.SerializedState, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create connection: %w", err)
	}
	return nil
}

func (s *ConnectionStore) GetByID(ctx context.Context, id string) (*store.Connection, error) {
	var c store.Connection
	err := s.db.GetContext(ctx, &c,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("connection " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if err := s.decryptToken(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ConnectionStore) ListByOwner(ctx context.Context, ownerID string) ([]store.Connection, error) {
	var conns []store.Connection
	err := s.db.SelectContext(ctx, &conns,
		`SELECT `+connectionColumns+` FROM connections WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	for i := range conns {
		if err := s.decryptToken(&conns[i]); err != nil {
			return nil, err
		}
	}
	return conns, nil
}

func (s *ConnectionStore) GetAll(ctx context.Context) ([]store.Connection, error) {
	var conns []store.Connection
	err := s.db.SelectContext(ctx, &conns,
		`SELECT `+connectionColumns+` FROM connections ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("get all connections: %w", err)
	}
	for i := range conns {
		if err := s.decryptToken(&conns[i]); err != nil {
			return nil, err
		}
	}
	return conns, nil
}

// Update applies the set fields of upd in one UPDATE statement, so events
// for the same connection never observe a half-applied transition.
func (s *ConnectionStore) Update(ctx context.Context, id string, upd store.ConnectionUpdate) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	n := 2

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, n))
		args = append(args, value)
		n++
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.PairingPayload != nil {
		add("pairing_payload", *upd.PairingPayload)
	}
	if upd.RetryCount != nil {
		add("retry_count", *upd.RetryCount)
	}
	if upd.Token != nil {
		token, err := crypto.Encrypt(*upd.Token, s.encryptionKey)
		if err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
		add("token", token)
	}
	if upd.SerializedState != nil {
		add("serialized_state", *upd.SerializedState)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE connections SET %s WHERE id = $%d", strings.Join(sets, ", "), n)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.NotFound("connection " + id)
	}
	return nil
}

func (s *ConnectionStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM connections WHERE status <> ''`)
	if err != nil {
		return 0, fmt.Errorf("count active connections: %w", err)
	}
	return count, nil
}

func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.NotFound("connection " + id)
	}
	return nil
}

func (s *ConnectionStore) decryptToken(c *store.Connection) error {
	token, err := crypto.Decrypt(c.Token, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("decrypt token for %s: %w", c.ID, err)
	}
	c.Token = token
	return nil
}
