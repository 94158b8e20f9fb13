package gorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gormadapter "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
)

func newTestConfig(adapters map[string]interface{}) *config.Config {
	cfg := config.NewConfig()
	cfg.Taxi.AdapterConfigs = adapters
	return cfg
}

func TestProvider_GetConnection_SQLite(t *testing.T) {
	cfg := newTestConfig(map[string]interface{}{
		"local": map[string]interface{}{
			"type":     "sqlite",
			"database": "file::memory:",
			"pool":     map[string]interface{}{"max_open_conns": "1"},
		},
	})
	p := gormadapter.NewProvider(cfg)
	defer p.CloseAll()

	conn, err := p.GetConnection("local")
	require.NoError(t, err)
	assert.Equal(t, "local", conn.Name())
	assert.Equal(t, "sqlite", conn.Type())
	assert.Equal(t, 1, conn.Config().Pool.MaxOpenConns)

	var one int
	require.NoError(t, conn.GormDB().Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	again, err := p.GetConnection("local")
	require.NoError(t, err)
	assert.Same(t, conn, again, "connections are cached by name")
}

func TestProvider_GetConnection_Errors(t *testing.T) {
	cfg := newTestConfig(map[string]interface{}{
		"untyped":  map[string]interface{}{"host": "localhost"},
		"unknown":  map[string]interface{}{"type": "oracle"},
		"nopath":   map[string]interface{}{"type": "sqlite"},
		"badports": map[string]interface{}{"type": "sqlite", "database": "x.db", "port": "not-a-port"},
	})
	p := gormadapter.NewProvider(cfg)
	defer p.CloseAll()

	for _, name := range []string{"missing", "untyped", "unknown", "nopath", "badports"} {
		t.Run(name, func(t *testing.T) {
			_, err := p.GetConnection(name)
			assert.Error(t, err)
		})
	}
}

func TestProvider_CloseAll(t *testing.T) {
	cfg := newTestConfig(map[string]interface{}{
		"local": map[string]interface{}{"type": "sqlite", "database": "file::memory:"},
	})
	p := gormadapter.NewProvider(cfg)
	first, err := p.GetConnection("local")
	require.NoError(t, err)
	require.NoError(t, p.CloseAll())

	second, err := p.GetConnection("local")
	require.NoError(t, err)
	assert.NotSame(t, first, second, "a closed connection is not handed out again")
	require.NoError(t, p.CloseAll())
}
