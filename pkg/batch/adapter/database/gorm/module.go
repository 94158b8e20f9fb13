package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/taxiflow/pkg/batch/adapter/database"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
)

// NewManagedProvider creates a Provider whose connections are closed when the fx application stops.
func NewManagedProvider(lc fx.Lifecycle, cfg *config.Config) *Provider {
	p := NewProvider(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.CloseAll()
		},
	})
	return p
}

// Module exports the GORM connection provider for dependency injection.
// Dialector packages (postgres, mysql, sqlite) must be imported separately to be registered.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewManagedProvider,
		fx.As(new(database.DBProvider)),
	)),
)
