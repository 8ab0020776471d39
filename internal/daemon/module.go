// Package daemon composes the vault daemon: engine driver, store, protocol
// adapter, reconciliation pipeline, and outbox sender, wired through fx.
package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/wavault/internal/bus"
	"github.com/matheus3301/wavault/internal/config"
	"github.com/matheus3301/wavault/internal/content"
	"github.com/matheus3301/wavault/internal/engine"
	"github.com/matheus3301/wavault/internal/engine/fskv"
	"github.com/matheus3301/wavault/internal/engine/memkv"
	"github.com/matheus3301/wavault/internal/engine/sqlkv"
	"github.com/matheus3301/wavault/internal/lock"
	"github.com/matheus3301/wavault/internal/logging"
	"github.com/matheus3301/wavault/internal/outbox"
	"github.com/matheus3301/wavault/internal/session"
	"github.com/matheus3301/wavault/internal/status"
	"github.com/matheus3301/wavault/internal/store"
	intsync "github.com/matheus3301/wavault/internal/sync"
	"github.com/matheus3301/wavault/internal/wa"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	// Driver selects the engine backend; empty means fs.
	Driver string
	// MediaTimeout bounds a single media fetch; zero means the default.
	MediaTimeout time.Duration
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideEngine,
			provideStore,
			provideAdapter,
			provideResolver,
			provideSyncEngine,
			provideSender,
			NewVault,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideEngine(p Params, logger *zap.Logger) (engine.KV, error) {
	switch p.Driver {
	case "", config.DriverFS:
		kv, err := fskv.Open(session.DataDir(p.SessionName))
		if err != nil {
			return nil, err
		}
		logger.Info("engine initialized",
			zap.String("driver", config.DriverFS), zap.String("path", session.DataDir(p.SessionName)))
		return kv, nil
	case config.DriverSQLite:
		kv, err := sqlkv.Open(session.VaultDBPath(p.SessionName))
		if err != nil {
			return nil, err
		}
		logger.Info("engine initialized",
			zap.String("driver", config.DriverSQLite), zap.String("path", session.VaultDBPath(p.SessionName)))
		return kv, nil
	case config.DriverMemory:
		logger.Info("engine initialized", zap.String("driver", config.DriverMemory))
		return memkv.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine driver %q", p.Driver)
	}
}

func provideStore(kv engine.KV) *store.Store {
	return store.New(kv)
}

func provideAdapter(p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, b, logger)
}

func provideResolver(p Params, s *store.Store, adapter *wa.Adapter, logger *zap.Logger) *content.Resolver {
	timeout := p.MediaTimeout
	if timeout <= 0 {
		timeout = config.DefaultMediaTimeoutSec * time.Second
	}
	return content.NewResolver(s, adapter, logger, timeout)
}

func provideSyncEngine(s *store.Store, b *bus.Bus, r *content.Resolver, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(s, b, r, logger)
}

func provideSender(s *store.Store, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(s, adapter, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, adapter *wa.Adapter, eng *intsync.Engine, sender *outbox.Sender, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Reconciliation drains wa.* bus events.
			eng.Start(context.Background())

			handler := wa.NewEventHandler(b, machine, logger)
			adapter.RegisterEventHandler(handler.Handle)

			sender.Start(context.Background())

			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
						return
					}
					adapter.SeedContacts(context.Background())
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
				go runQRAuth(adapter, logger)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			eng.Stop()
			adapter.Disconnect()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// runQRAuth drives the headless pairing flow until it concludes. The QR
// image lands in the session directory; auth progress is on the bus.
func runQRAuth(adapter *wa.Adapter, logger *zap.Logger) {
	events, err := adapter.StartQRAuth(context.Background())
	if err != nil {
		logger.Error("failed to start QR auth", zap.Error(err))
		return
	}
	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			logger.Info("pairing QR refreshed, scan qr.png in the session directory")
		case wa.AuthEventAuthenticated:
			logger.Info("paired successfully")
			adapter.SeedContacts(context.Background())
		case wa.AuthEventTimeout, wa.AuthEventAuthFailed:
			logger.Warn("pairing did not complete", zap.String("reason", evt.Message))
		}
	}
}
