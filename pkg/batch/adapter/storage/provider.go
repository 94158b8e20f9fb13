package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	storageConfig "github.com/tigerroll/taxiflow/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/serialization"
)

// AdapterFactory opens a StorageConnection from its decoded configuration.
type AdapterFactory func(ctx context.Context, cfg storageConfig.StorageConfig, name string) (StorageConnection, error)

var (
	adapterRegistry = make(map[string]AdapterFactory)
	adapterMutex    sync.RWMutex
)

// RegisterAdapter registers an AdapterFactory for the given storage type.
// Adapter packages call it from init.
func RegisterAdapter(storageType string, factory AdapterFactory) {
	adapterMutex.Lock()
	defer adapterMutex.Unlock()
	if _, exists := adapterRegistry[storageType]; exists {
		logger.Warnf("Storage adapter for type '%s' already registered. Overwriting.", storageType)
	}
	adapterRegistry[storageType] = factory
}

func getAdapterFactory(storageType string) (AdapterFactory, error) {
	adapterMutex.RLock()
	defer adapterMutex.RUnlock()
	factory, ok := adapterRegistry[storageType]
	if !ok {
		return nil, fmt.Errorf("no storage adapter registered for type: %s", storageType)
	}
	return factory, nil
}

// Provider opens storage connections from the named entries under taxi.storage.
type Provider struct {
	rawConfigs  map[string]interface{}
	connections map[string]StorageConnection
	mu          sync.Mutex
}

// NewProvider creates a new Provider.
func NewProvider(cfg *coreConfig.Config) *Provider {
	return &Provider{
		rawConfigs:  cfg.Taxi.StorageConfigs,
		connections: make(map[string]StorageConnection),
	}
}

// GetConnection retrieves a StorageConnection by the given name.
// It creates a new connection if one does not already exist for the given name.
func (p *Provider) GetConnection(ctx context.Context, name string) (StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}

	rawConfig, ok := p.rawConfigs[name]
	if !ok {
		return nil, fmt.Errorf("storage configuration for name '%s' not found", name)
	}
	cfg, err := storageConfig.Decode(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid storage config '%s': %w", name, err)
	}
	logger.Debugf("Opening storage connection '%s': %s", name, serialization.MaskedJSON(rawConfig))
	factory, err := getAdapterFactory(cfg.Type)
	if err != nil {
		return nil, err
	}
	conn, err := factory(ctx, cfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter for '%s': %w", cfg.Type, name, err)
	}

	p.connections[name] = conn
	logger.Debugf("Created new %s storage connection '%s'.", cfg.Type, name)
	return conn, nil
}

// CloseAll closes all connections managed by this provider.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to close storage connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return errs.ErrorOrNil()
}

var _ StorageProvider = (*Provider)(nil)

// NewManagedProvider creates a Provider whose connections are closed when the fx application stops.
func NewManagedProvider(lc fx.Lifecycle, cfg *coreConfig.Config) *Provider {
	p := NewProvider(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.CloseAll()
		},
	})
	return p
}

// Module is the Fx module for storage connections.
// Adapter packages (local, gcs) must be imported separately to be registered.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewManagedProvider,
		fx.As(new(StorageProvider)),
	)),
)
