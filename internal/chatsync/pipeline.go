// Package chatsync implements the chat synchronization pipeline: fetch
// the raw chat list for a connection, resolve each unknown entry into a
// display identity and persist the result idempotently.
package chatsync

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/config"
	"github.com/waplink/waplink/internal/pool"
	"github.com/waplink/waplink/internal/provider"
	"github.com/waplink/waplink/internal/retry"
	"github.com/waplink/waplink/internal/store"
	redislock "github.com/waplink/waplink/internal/store/redis"
)

// resolvedCacheSize bounds the in-process cache of already-persisted
// external ids. It saves one EXISTS query per repeat entry across runs.
const resolvedCacheSize = 8192

// Result summarizes one synchronize run.
type Result struct {
	Total    int `json:"total"`    // entries in the provider's chat list
	Skipped  int `json:"skipped"`  // already persisted, not resolved again
	Resolved int `json:"resolved"` // successfully resolved this run
	Dropped  int `json:"dropped"`  // resolution exhausted retries, entry dropped
	Inserted int `json:"inserted"` // rows actually written
}

// Synchronizer runs the pipeline for one deployment. Safe for concurrent
// use; per-connection exclusion is enforced by the sync lock.
type Synchronizer struct {
	conns   store.ConnectionStore
	chats   store.ChatStore
	gateway provider.Gateway
	cfg     config.SyncConfig
	lock    *redislock.SyncLock
	tracer  trace.Tracer

	// resolved caches external ids known to be persisted. Worst case a
	// stale entry costs nothing: the store upsert is idempotent anyway.
	resolved *lru.Cache[string, struct{}]
}

// New creates a Synchronizer. lock may be nil for single-process
// deployments.
func New(conns store.ConnectionStore, chats store.ChatStore, gateway provider.Gateway, cfg config.SyncConfig, lock *redislock.SyncLock) (*Synchronizer, error) {
	cache, err := lru.New[string, struct{}](resolvedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Synchronizer{
		conns:    conns,
		chats:    chats,
		gateway:  gateway,
		cfg:      cfg,
		lock:     lock,
		tracer:   otel.Tracer("waplink/chatsync"),
		resolved: cache,
	}, nil
}

// Synchronize fetches the connection's chat list and persists every entry
// that can be resolved. The run is idempotent: entries already stored are
// skipped, and the insert path never updates existing rows. Entries whose
// resolution keeps failing are dropped with a log line; they surface again
// on the next run.
func (s *Synchronizer) Synchronize(ctx context.Context, connectionID string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "chatsync.Synchronize",
		trace.WithAttributes(attribute.String("connection.id", connectionID)))
	defer span.End()

	if connectionID == "" {
		return nil, apperr.Validation("connection id is required")
	}

	conn, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.Token == "" {
		return nil, apperr.NotFound("connection " + connectionID + " has no provider token")
	}

	if err := s.lock.Acquire(ctx, connectionID); err != nil {
		return nil, err
	}
	defer s.lock.Release(ctx, connectionID)

	raw, err := s.gateway.ListChats(ctx, conn.ID, conn.Token)
	if err != nil {
		// The list fetch is the whole run's input; nothing to salvage.
		return nil, apperr.Upstream("fetch chat list for "+connectionID, err)
	}

	res := &Result{Total: len(raw)}

	pending, skipped, err := s.filterKnown(ctx, raw)
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped

	resolved, dropped := s.resolveAll(ctx, conn, pending)
	res.Resolved = len(resolved)
	res.Dropped = dropped

	inserted, err := s.persist(ctx, connectionID, resolved)
	if err != nil {
		return nil, err
	}
	res.Inserted = inserted

	span.SetAttributes(
		attribute.Int("chats.total", res.Total),
		attribute.Int("chats.inserted", res.Inserted),
		attribute.Int("chats.dropped", res.Dropped),
	)
	slog.Info("chat sync complete",
		"connection", connectionID,
		"total", res.Total,
		"skipped", res.Skipped,
		"resolved", res.Resolved,
		"dropped", res.Dropped,
		"inserted", res.Inserted,
	)
	return res, nil
}

// filterKnown drops entries that are already persisted, consulting the
// in-process cache before the store.
func (s *Synchronizer) filterKnown(ctx context.Context, raw []provider.RawChat) (pending []provider.RawChat, skipped int, err error) {
	for _, rc := range raw {
		if rc.ExternalID == "" {
			skipped++
			continue
		}
		if _, ok := s.resolved.Get(rc.ExternalID); ok {
			skipped++
			continue
		}
		exists, err := s.chats.ExistsByExternalID(ctx, rc.ExternalID)
		if err != nil {
			return nil, 0, err
		}
		if exists {
			s.resolved.Add(rc.ExternalID, struct{}{})
			skipped++
			continue
		}
		pending = append(pending, rc)
	}
	return pending, skipped, nil
}

// resolveAll resolves pending entries with bounded concurrency. Each
// entry retries independently; one entry's exhaustion never affects its
// siblings.
func (s *Synchronizer) resolveAll(ctx context.Context, conn *store.Connection, pending []provider.RawChat) ([]store.Chat, int) {
	if len(pending) == 0 {
		return nil, 0
	}

	retryCfg := retry.Config{
		Attempts: s.cfg.RetryAttempts,
		Interval: s.cfg.RetryInterval,
	}

	var (
		mu       sync.Mutex
		resolved []store.Chat
		dropped  int
	)

	p := pool.New(s.cfg.Concurrency)
	for _, rc := range pending {
		rc := rc
		err := p.Submit(ctx, func() {
			chat, err := s.resolveOne(ctx, conn, rc, retryCfg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				dropped++
				return
			}
			resolved = append(resolved, *chat)
		})
		if err != nil {
			slog.Warn("resolution submit aborted", "connection", conn.ID, "error", err)
			break
		}
	}
	p.Wait()

	return resolved, dropped
}

// resolveOne turns a raw entry into a persistable chat, classifying by
// JID shape and retrying transient provider failures.
func (s *Synchronizer) resolveOne(ctx context.Context, conn *store.Connection, rc provider.RawChat, retryCfg retry.Config) (*store.Chat, error) {
	isGroup := provider.IsGroupJID(rc.ExternalID) || rc.IsGroupHint

	var detail *provider.ChatDetail
	attempts, err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		var derr error
		if isGroup {
			detail, derr = s.gateway.GetGroupDetail(ctx, conn.ID, conn.Token, rc.ExternalID)
		} else {
			detail, derr = s.gateway.LookupContact(ctx, conn.ID, conn.Token, rc.ExternalID)
		}
		return derr
	})
	if err != nil {
		slog.Warn("chat resolution dropped",
			"connection", conn.ID,
			"external_id", rc.ExternalID,
			"is_group", isGroup,
			"attempts", attempts,
			"error", err,
		)
		return nil, err
	}

	name := detail.DisplayName
	if name == "" {
		// An identity with no name is still worth keeping; the external
		// id is the stable key.
		name = rc.ExternalID
	}

	return &store.Chat{
		ExternalID:   rc.ExternalID,
		DisplayName:  name,
		IsGroup:      isGroup,
		ConnectionID: conn.ID,
	}, nil
}

func (s *Synchronizer) persist(ctx context.Context, connectionID string, resolved []store.Chat) (int, error) {
	if len(resolved) == 0 {
		return 0, nil
	}

	inserted, err := s.chats.UpsertMany(ctx, resolved)
	if err != nil {
		return inserted, err
	}
	for _, c := range resolved {
		s.resolved.Add(c.ExternalID, struct{}{})
	}
	return inserted, nil
}

// SynchronizeGroups is the bulk fast path: one provider call returning
// every group, persisted without per-entry resolution.
func (s *Synchronizer) SynchronizeGroups(ctx context.Context, connectionID string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "chatsync.SynchronizeGroups",
		trace.WithAttributes(attribute.String("connection.id", connectionID)))
	defer span.End()

	if connectionID == "" {
		return nil, apperr.Validation("connection id is required")
	}

	conn, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.Token == "" {
		return nil, apperr.NotFound("connection " + connectionID + " has no provider token")
	}

	if err := s.lock.Acquire(ctx, connectionID); err != nil {
		return nil, err
	}
	defer s.lock.Release(ctx, connectionID)

	groups, err := s.gateway.FetchAllGroups(ctx, conn.ID, conn.Token)
	if err != nil {
		return nil, apperr.Upstream("fetch groups for "+connectionID, err)
	}

	chats := make([]store.Chat, 0, len(groups))
	for _, g := range groups {
		if g.ExternalID == "" {
			continue
		}
		name := g.DisplayName
		if name == "" {
			name = g.ExternalID
		}
		chats = append(chats, store.Chat{
			ExternalID:   g.ExternalID,
			DisplayName:  name,
			IsGroup:      true,
			ConnectionID: conn.ID,
		})
	}

	inserted, err := s.persist(ctx, connectionID, chats)
	if err != nil {
		return nil, err
	}

	res := &Result{Total: len(groups), Resolved: len(chats), Inserted: inserted, Skipped: len(groups) - len(chats)}
	slog.Info("group sync complete", "connection", connectionID, "total", res.Total, "inserted", res.Inserted)
	return res, nil
}
