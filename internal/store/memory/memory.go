// Package memory implements the connection and chat stores in process
// memory. Used in dev mode (no Postgres DSN) and by tests. Nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/store"
)

// ConnectionStore implements store.ConnectionStore in memory.
type ConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]store.Connection
}

func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{conns: make(map[string]store.Connection)}
}

func (s *ConnectionStore) Create(_ context.Context, c *store.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = store.GenNewID().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.conns[c.ID] = *c
	return nil
}

func (s *ConnectionStore) GetByID(_ context.Context, id string) (*store.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conns[id]
	if !ok {
		return nil, apperr.NotFound("connection " + id)
	}
	return &c, nil
}

func (s *ConnectionStore) ListByOwner(_ context.Context, ownerID string) ([]store.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Connection
	for _, c := range s.conns {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *ConnectionStore) GetAll(_ context.Context) ([]store.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	sortByCreation(out)
	return out, nil
}

func (s *ConnectionStore) Update(_ context.Context, id string, upd store.ConnectionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return apperr.NotFound("connection " + id)
	}

	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.PairingPayload != nil {
		c.PairingPayload = *upd.PairingPayload
	}
	if upd.RetryCount != nil {
		c.RetryCount = *upd.RetryCount
	}
	if upd.Token != nil {
		c.Token = *upd.Token
	}
	if upd.SerializedState != nil {
		c.SerializedState = *upd.SerializedState
	}
	c.UpdatedAt = time.Now().UTC()

	s.conns[id] = c
	return nil
}

func (s *ConnectionStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.conns {
		if c.Status != "" {
			count++
		}
	}
	return count, nil
}

func (s *ConnectionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[id]; !ok {
		return apperr.NotFound("connection " + id)
	}
	delete(s.conns, id)
	return nil
}

func sortByCreation(conns []store.Connection) {
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].CreatedAt.Equal(conns[j].CreatedAt) {
			return conns[i].ID < conns[j].ID
		}
		return conns[i].CreatedAt.Before(conns[j].CreatedAt)
	})
}

// ChatStore implements store.ChatStore in memory.
type ChatStore struct {
	mu    sync.RWMutex
	chats map[string]store.Chat // keyed by external id
}

func NewChatStore() *ChatStore {
	return &ChatStore{chats: make(map[string]store.Chat)}
}

func (s *ChatStore) ExistsByExternalID(_ context.Context, externalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.chats[externalID]
	return ok, nil
}

func (s *ChatStore) UpsertMany(_ context.Context, chats []store.Chat) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, c := range chats {
		if _, ok := s.chats[c.ExternalID]; ok {
			continue
		}
		if c.ID == uuid.Nil {
			c.ID = store.GenNewID()
		}
		c.CreatedAt = time.Now().UTC()
		s.chats[c.ExternalID] = c
		inserted++
	}
	return inserted, nil
}

func (s *ChatStore) ListByConnection(_ context.Context, connectionID string) ([]store.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Chat
	for _, c := range s.chats {
		if c.ConnectionID == connectionID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (s *ChatStore) DeleteByConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ext, c := range s.chats {
		if c.ConnectionID == connectionID {
			delete(s.chats, ext)
		}
	}
	return nil
}
