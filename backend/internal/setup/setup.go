package setup

import (
	"context"
	"fmt"

	"github.com/itchan-dev/legorachat/backend/internal/fanout"
	"github.com/itchan-dev/legorachat/backend/internal/handler"
	"github.com/itchan-dev/legorachat/backend/internal/service"
	"github.com/itchan-dev/legorachat/backend/internal/storage/pg"
	"github.com/itchan-dev/legorachat/shared/config"
	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/logger"
)

// Dependencies holds everything the server owns for its lifetime.
type Dependencies struct {
	Storage  *pg.Storage
	Registry *fanout.Registry
	Handler  *handler.Handler
	Config   *config.Config
}

// SetupDependencies connects to the database, applies the schema, seeds
// the configured users and wires services to handlers.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := storage.Migrate(); err != nil {
		storage.Cleanup()
		return nil, err
	}

	if seed := seedUsers(cfg); len(seed) > 0 {
		if err := storage.EnsureUsers(seed); err != nil {
			storage.Cleanup()
			return nil, fmt.Errorf("failed to seed users: %w", err)
		}
		logger.Log.Info("seed users ensured", "count", len(seed))
	}

	registry := fanout.NewRegistry(cfg.Public.ChannelBufferSize)

	auth := service.NewAuth(storage)
	thread := service.NewThread(storage, storage, registry)
	message := service.NewMessage(storage, registry)

	h := handler.New(auth, thread, message, registry, storage, cfg)

	return &Dependencies{
		Storage:  storage,
		Registry: registry,
		Handler:  h,
		Config:   cfg,
	}, nil
}

// Cleanup closes live channels first so streaming handlers return before
// the pool goes away.
func (d *Dependencies) Cleanup() {
	d.Registry.Close()
	if err := d.Storage.Cleanup(); err != nil {
		logger.Log.Error("failed to close storage", "error", err)
	}
}

func seedUsers(cfg *config.Config) []domain.Credentials {
	password := cfg.Private.SeedPassword
	if password == "" {
		password = "password"
	}
	seed := make([]domain.Credentials, 0, len(cfg.Public.SeedUsers))
	for _, username := range cfg.Public.SeedUsers {
		seed = append(seed, domain.Credentials{Username: username, Password: password})
	}
	return seed
}
