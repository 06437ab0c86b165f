// Package session owns the in-process registry of live provider handles
// and keeps the connection store synchronized with reality. One logical
// connection maps to at most one live handle; every lifecycle transition
// is persisted before the next event for that connection is applied.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/config"
	"github.com/waplink/waplink/internal/provider"
	"github.com/waplink/waplink/internal/store"
)

// Handle is a live link to a provider instance. It owns the background
// poller that watches the engine's connection state while pairing.
type Handle struct {
	ID     string
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the poller and waits for it to exit.
func (h *Handle) stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
}

// Manager drives connections through pairing and keeps the registry of
// live handles.
type Manager struct {
	conns   store.ConnectionStore
	chats   store.ChatStore
	gateway provider.Gateway
	cfg     config.LifecycleConfig

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewManager creates the lifecycle manager.
func NewManager(conns store.ConnectionStore, chats store.ChatStore, gateway provider.Gateway, cfg config.LifecycleConfig) *Manager {
	return &Manager{
		conns:   conns,
		chats:   chats,
		gateway: gateway,
		cfg:     cfg,
		handles: make(map[string]*Handle),
	}
}

// Connect creates a connection for the owner, requests a provider
// instance and begins pairing. Provider errors are surfaced synchronously;
// the pairing itself completes asynchronously via lifecycle events.
func (m *Manager) Connect(ctx context.Context, ownerID, name, description string) (*store.Connection, error) {
	ctx, span := otel.Tracer("waplink/session").Start(ctx, "session.Connect",
		trace.WithAttributes(attribute.String("owner.id", ownerID)))
	defer span.End()

	if ownerID == "" {
		return nil, apperr.Validation("owner id is required")
	}

	c := &store.Connection{
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Status:      store.StatusUnpaired,
	}
	if err := m.conns.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}

	auth, err := m.gateway.CreateInstance(ctx, c.ID, description)
	if err != nil {
		failed := store.StatusOf(store.StatusFailed)
		if uerr := m.conns.Update(ctx, c.ID, store.ConnectionUpdate{Status: failed}); uerr != nil {
			slog.Error("mark connection failed", "connection", c.ID, "error", uerr)
		}
		return nil, fmt.Errorf("provider instance create for %s: %w", c.ID, err)
	}

	if err := m.conns.Update(ctx, c.ID, store.ConnectionUpdate{
		Status: store.StatusOf(store.StatusPairing),
		Token:  store.StringOf(auth.Token),
	}); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	c.Status = store.StatusPairing
	c.Token = auth.Token

	m.startPairing(ctx, c)

	slog.Info("connection pairing started",
		"connection", c.ID,
		"owner", ownerID,
		"engine", m.gateway.Name(),
	)
	return c, nil
}

// Resume rebuilds a handle for every persisted connection and re-enters
// the pairing path. Stored serialized state is deliberately not trusted:
// what survives a restart is the pairing intent, not the live session.
func (m *Manager) Resume(ctx context.Context) error {
	conns, err := m.conns.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load connections: %w", err)
	}

	for i := range conns {
		c := conns[i]
		m.startPairing(ctx, &c)
	}

	slog.Info("connections resumed", "count", len(conns))
	return nil
}

// startPairing fetches the initial pairing payload for the connection,
// applies it and starts the state poller. One pairing attempt is always
// initiated, even when the payload fetch fails (the poller may still see
// the instance come up).
func (m *Manager) startPairing(ctx context.Context, c *store.Connection) {
	payload, err := m.gateway.GetPairingPayload(ctx, c.ID, c.Token)
	if err != nil {
		slog.Warn("pairing payload fetch failed", "connection", c.ID, "error", err)
	} else if err := m.Apply(ctx, c.ID, Event{Kind: EventPairingPayload, Payload: payload}); err != nil {
		slog.Error("apply pairing payload", "connection", c.ID, "error", err)
	}

	h, created := m.register(c.ID)
	if created {
		m.startPoller(h, c.Token)
	}
}

// register inserts a handle for id if absent. The insert is idempotent:
// a second registration for the same id returns the existing handle, so
// at most one live handle exists per connection.
func (m *Manager) register(id string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[id]; ok {
		return h, false
	}
	h := &Handle{ID: id, done: make(chan struct{})}
	m.handles[id] = h
	return h, true
}

// deregister removes and stops the handle for id, if any.
func (m *Manager) deregister(id string) {
	m.mu.Lock()
	h, ok := m.handles[id]
	delete(m.handles, id)
	m.mu.Unlock()

	if ok {
		h.stop()
	}
}

// GetHandle returns the live handle for id, or false if none exists.
func (m *Manager) GetHandle(id string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	return h, ok
}

// startPoller watches the engine's connection state until it opens.
func (m *Manager) startPoller(h *Handle, token string) {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	go func() {
		defer close(h.done)
		m.pollState(ctx, h.ID, token)
	}()
}

func (m *Manager) pollState(ctx context.Context, id, token string) {
	ticker := time.NewTicker(m.cfg.StatePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := m.gateway.GetConnectionState(ctx, id, token)
		if err != nil {
			slog.Debug("connection state probe failed", "connection", id, "error", err)
			continue
		}

		if state == provider.StateOpen {
			if err := m.Apply(ctx, id, Event{Kind: EventConnected}); err != nil {
				slog.Error("apply connected", "connection", id, "error", err)
				continue
			}
			return
		}
	}
}

// Apply dispatches one lifecycle event for a connection. It is the single
// mutation point: every transition persists through here, in the order
// events are delivered.
func (m *Manager) Apply(ctx context.Context, id string, ev Event) error {
	switch ev.Kind {
	case EventPairingPayload:
		return m.applyPairingPayload(ctx, id, ev.Payload)
	case EventAuthenticated:
		slog.Info("connection authenticated", "connection", id)
		return nil
	case EventConnected:
		return m.applyConnected(ctx, id, ev.SerializedState)
	case EventAuthFailure:
		return m.applyAuthFailure(ctx, id, ev.Err)
	default:
		return apperr.Validation(fmt.Sprintf("unknown event kind %q", ev.Kind))
	}
}

func (m *Manager) applyPairingPayload(ctx context.Context, id string, payload *provider.PairingPayload) error {
	if payload == nil {
		return apperr.Validation("pairing payload event without payload")
	}

	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode pairing payload: %w", err)
	}

	if err := m.conns.Update(ctx, id, store.ConnectionUpdate{
		Status:         store.StatusOf(store.StatusPairing),
		PairingPayload: store.StringOf(string(blob)),
		RetryCount:     store.IntOf(0),
	}); err != nil {
		return err
	}

	m.register(id)
	slog.Info("pairing payload updated", "connection", id, "refresh", payload.Count)
	return nil
}

func (m *Manager) applyConnected(ctx context.Context, id, serializedState string) error {
	if err := m.conns.Update(ctx, id, store.ConnectionUpdate{
		Status:          store.StatusOf(store.StatusConnected),
		PairingPayload:  store.StringOf(""),
		RetryCount:      store.IntOf(0),
		SerializedState: store.StringOf(serializedState),
	}); err != nil {
		return err
	}

	m.register(id)
	slog.Info("connection live", "connection", id, "engine", m.gateway.Name())
	return nil
}

// applyAuthFailure updates the retry counter and always returns an
// AuthenticationFailure: from the caller's perspective the pairing
// attempt is over, even when the store is left retryable. Once the
// counter reaches the configured bound the connection is marked FAILED
// and the counter reset, which breaks infinite retry loops.
func (m *Manager) applyAuthFailure(ctx context.Context, id string, cause error) error {
	c, err := m.conns.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if c.RetryCount+1 >= m.cfg.MaxAuthRetries {
		if err := m.conns.Update(ctx, id, store.ConnectionUpdate{
			Status:         store.StatusOf(store.StatusFailed),
			PairingPayload: store.StringOf(""),
			RetryCount:     store.IntOf(0),
		}); err != nil {
			return err
		}
		slog.Warn("connection failed after repeated auth failures",
			"connection", id,
			"attempts", c.RetryCount+1,
		)
	} else {
		if err := m.conns.Update(ctx, id, store.ConnectionUpdate{
			RetryCount: store.IntOf(c.RetryCount + 1),
		}); err != nil {
			return err
		}
		slog.Warn("authentication failure", "connection", id, "retry_count", c.RetryCount+1)
	}

	return apperr.AuthFailure("pairing rejected for connection "+id, cause)
}

// PairingPayload fetches fresh pairing material from the engine and
// persists it, resetting the retry counter.
func (m *Manager) PairingPayload(ctx context.Context, id string) (*provider.PairingPayload, error) {
	if id == "" {
		return nil, apperr.Validation("connection id is required")
	}

	c, err := m.conns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := m.gateway.GetPairingPayload(ctx, c.ID, c.Token)
	if err != nil {
		return nil, err
	}

	if err := m.Apply(ctx, id, Event{Kind: EventPairingPayload, Payload: payload}); err != nil {
		return nil, err
	}
	return payload, nil
}

// ListConnections returns the owner's connections. Rows with an empty
// status are lazily repaired: the engine is probed and rows whose
// instance reports open are promoted to CONNECTED.
func (m *Manager) ListConnections(ctx context.Context, ownerID string) ([]store.Connection, error) {
	if ownerID == "" {
		return nil, apperr.Validation("owner id is required")
	}

	conns, err := m.conns.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	for i := range conns {
		if conns[i].Status != "" {
			continue
		}
		state, err := m.gateway.GetConnectionState(ctx, conns[i].ID, conns[i].Token)
		if err != nil {
			slog.Debug("state probe failed during list", "connection", conns[i].ID, "error", err)
			continue
		}
		if state == provider.StateOpen {
			if err := m.Apply(ctx, conns[i].ID, Event{Kind: EventConnected}); err != nil {
				slog.Error("lazy status repair", "connection", conns[i].ID, "error", err)
				continue
			}
			conns[i].Status = store.StatusConnected
		}
	}
	return conns, nil
}

// CountActive counts connections with a non-empty status.
func (m *Manager) CountActive(ctx context.Context) (int, error) {
	return m.conns.CountActive(ctx)
}

// SendText sends a text message through a connection's instance.
func (m *Manager) SendText(ctx context.Context, id string, msg provider.TextMessage) error {
	c, err := m.requireLive(ctx, id)
	if err != nil {
		return err
	}
	return m.gateway.SendText(ctx, c.ID, c.Token, msg)
}

// SendMedia sends a media message through a connection's instance.
func (m *Manager) SendMedia(ctx context.Context, id string, msg provider.MediaMessage) error {
	c, err := m.requireLive(ctx, id)
	if err != nil {
		return err
	}
	return m.gateway.SendMedia(ctx, c.ID, c.Token, msg)
}

func (m *Manager) requireLive(ctx context.Context, id string) (*store.Connection, error) {
	if id == "" {
		return nil, apperr.Validation("connection id is required")
	}
	c, err := m.conns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Token == "" {
		return nil, apperr.Validation("connection " + id + " has no provider token")
	}
	return c, nil
}

// Delete tears down the provider instance, removes the connection's chats
// and deletes the row. The remote teardown happens first: a dangling
// provider instance is worse than a re-deletable row.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Validation("connection id is required")
	}

	c, err := m.conns.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := m.gateway.DeleteInstance(ctx, c.ID, c.Token); err != nil {
		return fmt.Errorf("provider instance teardown for %s: %w", id, err)
	}

	m.deregister(id)

	if err := m.chats.DeleteByConnection(ctx, id); err != nil {
		return err
	}
	if err := m.conns.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("connection deleted", "connection", id)
	return nil
}

// Shutdown stops all pollers. Store rows are untouched; the next Resume
// re-enters pairing for each of them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.handles = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		h.stop()
	}
}
