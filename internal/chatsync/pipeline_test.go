package chatsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/config"
	"github.com/waplink/waplink/internal/provider"
	"github.com/waplink/waplink/internal/store"
	"github.com/waplink/waplink/internal/store/memory"
)

// syncGateway fakes the provider for pipeline tests. Per-entry failure
// budgets let tests script "fail N times then succeed".
type syncGateway struct {
	chats  []provider.RawChat
	groups []provider.ChatDetail

	listErr error

	mu        sync.Mutex
	failLeft  map[string]int // remaining forced failures per external id
	attempts  map[string]int
	maxActive atomic.Int64
	active    atomic.Int64
}

func newSyncGateway(chats ...provider.RawChat) *syncGateway {
	return &syncGateway{
		chats:    chats,
		failLeft: make(map[string]int),
		attempts: make(map[string]int),
	}
}

func (g *syncGateway) failTimes(externalID string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failLeft[externalID] = n
}

func (g *syncGateway) attemptsFor(externalID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts[externalID]
}

func (g *syncGateway) Name() string { return "fake" }

func (g *syncGateway) CreateInstance(context.Context, string, string) (*provider.InstanceAuth, error) {
	return nil, errors.New("not used")
}
func (g *syncGateway) DeleteInstance(context.Context, string, string) error { return nil }
func (g *syncGateway) GetPairingPayload(context.Context, string, string) (*provider.PairingPayload, error) {
	return nil, errors.New("not used")
}
func (g *syncGateway) GetConnectionState(context.Context, string, string) (string, error) {
	return provider.StateOpen, nil
}

func (g *syncGateway) ListChats(context.Context, string, string) ([]provider.RawChat, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.chats, nil
}

func (g *syncGateway) resolve(externalID, prefix string) (*provider.ChatDetail, error) {
	cur := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		max := g.maxActive.Load()
		if cur <= max || g.maxActive.CompareAndSwap(max, cur) {
			break
		}
	}
	// Give the pool a chance to overlap submissions.
	time.Sleep(time.Millisecond)

	g.mu.Lock()
	g.attempts[externalID]++
	if g.failLeft[externalID] > 0 {
		g.failLeft[externalID]--
		g.mu.Unlock()
		return nil, errors.New("transient provider failure")
	}
	g.mu.Unlock()

	return &provider.ChatDetail{ExternalID: externalID, DisplayName: prefix + externalID}, nil
}

func (g *syncGateway) GetGroupDetail(_ context.Context, _, _, externalID string) (*provider.ChatDetail, error) {
	return g.resolve(externalID, "group ")
}

func (g *syncGateway) LookupContact(_ context.Context, _, _, externalID string) (*provider.ChatDetail, error) {
	return g.resolve(externalID, "contact ")
}

func (g *syncGateway) FetchAllGroups(context.Context, string, string) ([]provider.ChatDetail, error) {
	return g.groups, nil
}

func (g *syncGateway) SendText(context.Context, string, string, provider.TextMessage) error {
	return nil
}
func (g *syncGateway) SendMedia(context.Context, string, string, provider.MediaMessage) error {
	return nil
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Concurrency:   4,
		RetryAttempts: 3,
		RetryInterval: time.Millisecond,
	}
}

func setup(t *testing.T, gw provider.Gateway) (*Synchronizer, *memory.ConnectionStore, *memory.ChatStore, string) {
	t.Helper()

	conns := memory.NewConnectionStore()
	chats := memory.NewChatStore()
	c := &store.Connection{OwnerID: "owner-1", Name: "line", Status: store.StatusConnected, Token: "tok"}
	if err := conns.Create(context.Background(), c); err != nil {
		t.Fatalf("seed connection: %v", err)
	}

	s, err := New(conns, chats, gw, testSyncConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, conns, chats, c.ID
}

func TestSynchronize_PersistsGroupAndContact(t *testing.T) {
	gw := newSyncGateway(
		provider.RawChat{ExternalID: "1203630@g.us"},
		provider.RawChat{ExternalID: "555123@s.whatsapp.net"},
	)
	s, _, chats, connID := setup(t, gw)

	res, err := s.Synchronize(context.Background(), connID)
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if res.Inserted != 2 {
		t.Fatalf("inserted = %d, want 2", res.Inserted)
	}

	stored, _ := chats.ListByConnection(context.Background(), connID)
	if len(stored) != 2 {
		t.Fatalf("stored %d chats, want 2", len(stored))
	}
	byExt := make(map[string]store.Chat)
	for _, c := range stored {
		byExt[c.ExternalID] = c
	}
	if g := byExt["1203630@g.us"]; !g.IsGroup || g.DisplayName != "group 1203630@g.us" {
		t.Errorf("group row wrong: %+v", g)
	}
	if c := byExt["555123@s.whatsapp.net"]; c.IsGroup || c.DisplayName != "contact 555123@s.whatsapp.net" {
		t.Errorf("contact row wrong: %+v", c)
	}
}

func TestSynchronize_SecondRunInsertsOnlyMissing(t *testing.T) {
	gw := newSyncGateway(
		provider.RawChat{ExternalID: "a@s.whatsapp.net"},
		provider.RawChat{ExternalID: "b@s.whatsapp.net"},
	)
	s, _, chats, connID := setup(t, gw)

	if _, err := s.Synchronize(context.Background(), connID); err != nil {
		t.Fatalf("first run: %v", err)
	}

	gw.chats = append(gw.chats, provider.RawChat{ExternalID: "c@s.whatsapp.net"})

	res, err := s.Synchronize(context.Background(), connID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("second run inserted = %d, want 1", res.Inserted)
	}
	if res.Skipped != 2 {
		t.Errorf("second run skipped = %d, want 2", res.Skipped)
	}

	stored, _ := chats.ListByConnection(context.Background(), connID)
	if len(stored) != 3 {
		t.Errorf("stored %d chats, want 3", len(stored))
	}
}

func TestSynchronize_RetriedEntryPersistedOnce(t *testing.T) {
	gw := newSyncGateway(provider.RawChat{ExternalID: "flaky@s.whatsapp.net"})
	gw.failTimes("flaky@s.whatsapp.net", 2)
	s, _, chats, connID := setup(t, gw)

	res, err := s.Synchronize(context.Background(), connID)
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if res.Inserted != 1 || res.Dropped != 0 {
		t.Fatalf("inserted = %d dropped = %d, want 1/0", res.Inserted, res.Dropped)
	}
	if got := gw.attemptsFor("flaky@s.whatsapp.net"); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}

	stored, _ := chats.ListByConnection(context.Background(), connID)
	if len(stored) != 1 {
		t.Errorf("stored %d rows, want exactly 1", len(stored))
	}
}

func TestSynchronize_ExhaustedEntryDroppedSiblingsSurvive(t *testing.T) {
	gw := newSyncGateway(
		provider.RawChat{ExternalID: "dead@s.whatsapp.net"},
		provider.RawChat{ExternalID: "alive@s.whatsapp.net"},
	)
	gw.failTimes("dead@s.whatsapp.net", 10)
	s, _, chats, connID := setup(t, gw)

	res, err := s.Synchronize(context.Background(), connID)
	if err != nil {
		t.Fatalf("Synchronize should not fail when one entry drops: %v", err)
	}
	if res.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", res.Dropped)
	}
	if res.Inserted != 1 {
		t.Errorf("inserted = %d, want 1", res.Inserted)
	}

	stored, _ := chats.ListByConnection(context.Background(), connID)
	if len(stored) != 1 || stored[0].ExternalID != "alive@s.whatsapp.net" {
		t.Errorf("stored = %+v, want only the healthy sibling", stored)
	}
}

func TestSynchronize_ListFailureIsFatalUpstream(t *testing.T) {
	gw := newSyncGateway()
	gw.listErr = errors.New("502 bad gateway")
	s, _, _, connID := setup(t, gw)

	_, err := s.Synchronize(context.Background(), connID)
	if !apperr.IsCode(err, apperr.CodeUpstream) {
		t.Fatalf("got %v, want upstream error", err)
	}
}

func TestSynchronize_UnknownConnection(t *testing.T) {
	s, _, _, _ := setup(t, newSyncGateway())

	_, err := s.Synchronize(context.Background(), "missing")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestSynchronize_MissingTokenIsNotFound(t *testing.T) {
	gw := newSyncGateway()
	conns := memory.NewConnectionStore()
	c := &store.Connection{OwnerID: "owner-1", Name: "tokenless"}
	if err := conns.Create(context.Background(), c); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, err := New(conns, memory.NewChatStore(), gw, testSyncConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = s.Synchronize(context.Background(), c.ID)
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestSynchronize_ConcurrencyBound(t *testing.T) {
	var raw []provider.RawChat
	for i := 0; i < 32; i++ {
		raw = append(raw, provider.RawChat{ExternalID: string(rune('a'+i%26)) + "x" + string(rune('0'+i/26)) + "@s.whatsapp.net"})
	}
	gw := newSyncGateway(raw...)
	s, _, _, connID := setup(t, gw)

	if _, err := s.Synchronize(context.Background(), connID); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	if max := gw.maxActive.Load(); max > int64(testSyncConfig().Concurrency) {
		t.Errorf("max in-flight resolutions = %d, bound is %d", max, testSyncConfig().Concurrency)
	}
}

func TestSynchronize_GroupHintOverridesSuffix(t *testing.T) {
	gw := newSyncGateway(provider.RawChat{ExternalID: "oddball@broadcast", IsGroupHint: true})
	s, _, chats, connID := setup(t, gw)

	if _, err := s.Synchronize(context.Background(), connID); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	stored, _ := chats.ListByConnection(context.Background(), connID)
	if len(stored) != 1 || !stored[0].IsGroup {
		t.Errorf("hinted entry not classified as group: %+v", stored)
	}
}

func TestSynchronizeGroups_BulkFastPath(t *testing.T) {
	gw := newSyncGateway()
	gw.groups = []provider.ChatDetail{
		{ExternalID: "g1@g.us", DisplayName: "Family"},
		{ExternalID: "g2@g.us", DisplayName: "Work"},
		{ExternalID: "", DisplayName: "orphan"},
	}
	s, _, chats, connID := setup(t, gw)

	res, err := s.SynchronizeGroups(context.Background(), connID)
	if err != nil {
		t.Fatalf("SynchronizeGroups: %v", err)
	}
	if res.Inserted != 2 {
		t.Errorf("inserted = %d, want 2 (empty id skipped)", res.Inserted)
	}
	if gw.attemptsFor("g1@g.us") != 0 {
		t.Error("bulk path should not resolve entries individually")
	}

	stored, _ := chats.ListByConnection(context.Background(), connID)
	for _, c := range stored {
		if !c.IsGroup {
			t.Errorf("bulk-synced chat %s not marked as group", c.ExternalID)
		}
	}
}
