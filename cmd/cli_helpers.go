package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/waplink/waplink/internal/chatsync"
	"github.com/waplink/waplink/internal/config"
	"github.com/waplink/waplink/internal/provider"
	"github.com/waplink/waplink/internal/session"
	"github.com/waplink/waplink/internal/store"
	"github.com/waplink/waplink/internal/store/memory"
	"github.com/waplink/waplink/internal/store/pg"
	"github.com/waplink/waplink/internal/store/redis"
)

// app bundles the wired service graph. Built once per command invocation.
type app struct {
	cfg     *config.Config
	conns   store.ConnectionStore
	chats   store.ChatStore
	gateway provider.Gateway
	manager *session.Manager
	syncer  *chatsync.Synchronizer
	lock    *redis.SyncLock

	closers []func()
}

// buildApp loads config and wires stores, gateway, manager and syncer.
// Without a Postgres DSN the in-memory stores are used: fine for trying
// commands out, useless for anything that must survive the process.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	if cfg.PostgresDSN != "" {
		db, err := pg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { db.Close() })
		a.conns = pg.NewConnectionStore(db, cfg.EncryptionKey)
		a.chats = pg.NewChatStore(db)
	} else {
		a.conns = memory.NewConnectionStore()
		a.chats = memory.NewChatStore()
	}

	if cfg.RedisAddr != "" {
		lock, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.Sync.LockTTL)
		if err != nil {
			return nil, err
		}
		a.lock = lock
		a.closers = append(a.closers, func() { lock.Close() })
	}

	gw, err := provider.New(cfg)
	if err != nil {
		return nil, err
	}
	a.gateway = gw

	a.manager = session.NewManager(a.conns, a.chats, gw, cfg.Lifecycle)
	a.closers = append(a.closers, a.manager.Shutdown)

	a.syncer, err = chatsync.New(a.conns, a.chats, gw, cfg.Sync, a.lock)
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
