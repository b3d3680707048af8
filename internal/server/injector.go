package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/accounts/internal/account"
	"github.com/nfrund/accounts/internal/config"
	"github.com/nfrund/accounts/internal/database"
	"github.com/nfrund/accounts/internal/domain"
	"github.com/nfrund/accounts/internal/email"
	"github.com/nfrund/accounts/internal/handlers"
	"github.com/nfrund/accounts/internal/notify"
	"github.com/nfrund/accounts/internal/pubsub"
	"github.com/nfrund/accounts/internal/storage"
	"github.com/samber/do/v2"
)

const connectTimeout = 15 * time.Second

// NewInjector registers the providers for every service the API needs.
// Providers are lazy: nothing connects or touches the disk until a service
// is invoked.
func NewInjector(cfg *config.Config) *do.RootScope {
	i := do.New()

	do.ProvideValue[config.Provider](i, cfg)
	do.Provide(i, provideConnection)
	do.Provide(i, provideRepository)
	do.Provide(i, provideAvatarStorage)
	do.Provide(i, provideBridge)
	do.Provide(i, provideEmailSender)
	do.Provide(i, provideMailer)
	do.Provide(i, provideAccountService)
	do.Provide(i, provideAccountHandler)
	do.Provide(i, provideHealthHandler)

	return i
}

// provideConnection connects to SurrealDB and starts the health monitor.
func provideConnection(i do.Injector) (*database.Connection, error) {
	cfg := do.MustInvoke[config.Provider](i)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	conn := database.NewConnection(cfg)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	conn.StartMonitoring()
	return conn, nil
}

func provideRepository(i do.Injector) (domain.AccountRepository, error) {
	cfg := do.MustInvoke[config.Provider](i)

	switch cfg.GetStoreDriver() {
	case config.StoreDriverMemory:
		slog.Warn("Using the in-memory account store; accounts are lost on restart")
		return database.NewMemoryAccountStore(), nil
	case config.StoreDriverSurreal:
		conn, err := do.Invoke[*database.Connection](i)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := database.EnsureSchema(ctx, conn); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return database.NewAccountStore(conn), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.GetStoreDriver())
	}
}

func provideAvatarStorage(i do.Injector) (domain.AvatarStorage, error) {
	cfg := do.MustInvoke[config.Provider](i)

	store, err := storage.NewDiskStore(cfg.GetImagePath())
	if err != nil {
		return nil, fmt.Errorf("prepare avatar directory %s: %w", cfg.GetImagePath(), err)
	}
	return storage.NewAvatarUploader(store, cfg.GetAvatarExtensions(), cfg.GetAvatarMaxBytes()), nil
}

func provideBridge(i do.Injector) (*pubsub.WatermillBridge, error) {
	return pubsub.NewWatermillBridge(), nil
}

func provideEmailSender(i do.Injector) (domain.EmailSender, error) {
	return email.NewEmailService(do.MustInvoke[config.Provider](i))
}

func provideMailer(i do.Injector) (*notify.Mailer, error) {
	return notify.NewMailer(do.MustInvoke[domain.EmailSender](i)), nil
}

func provideAccountService(i do.Injector) (*account.Service, error) {
	repo, err := do.Invoke[domain.AccountRepository](i)
	if err != nil {
		return nil, err
	}
	avatars, err := do.Invoke[domain.AvatarStorage](i)
	if err != nil {
		return nil, err
	}
	return account.NewService(account.Options{
		Repo:    repo,
		Avatars: avatars,
		Events:  do.MustInvoke[*pubsub.WatermillBridge](i),
		Config:  do.MustInvoke[config.Provider](i),
	})
}

func provideAccountHandler(i do.Injector) (*handlers.AccountHandler, error) {
	svc, err := do.Invoke[*account.Service](i)
	if err != nil {
		return nil, err
	}
	return handlers.NewAccountHandler(svc), nil
}

func provideHealthHandler(i do.Injector) (*handlers.HealthHandler, error) {
	cfg := do.MustInvoke[config.Provider](i)
	if cfg.GetStoreDriver() != config.StoreDriverSurreal {
		return handlers.NewHealthHandler(nil), nil
	}
	conn, err := do.Invoke[*database.Connection](i)
	if err != nil {
		return nil, err
	}
	return handlers.NewHealthHandler(conn), nil
}
