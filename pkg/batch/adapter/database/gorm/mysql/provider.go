// Package mysql registers the MySQL dialector with the GORM adapter.
package mysql

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm"
)

// init registers the MySQL dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := ConnectionString(cfg)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	})
}

// ConnectionString generates the DSN for MySQL connections.
// parseTime is always enabled so DATETIME columns scan into time.Time.
// Params, if set, is a URL query string of extra connection attributes.
func ConnectionString(c dbconfig.DatabaseConfig) (string, error) {
	dc := mysqldriver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dc.DBName = c.Database
	dc.ParseTime = true
	dc.Loc = time.UTC

	if c.Params != "" {
		values, err := url.ParseQuery(c.Params)
		if err != nil {
			return "", fmt.Errorf("invalid mysql params %q: %w", c.Params, err)
		}
		dc.Params = make(map[string]string, len(values))
		for k := range values {
			dc.Params[k] = values.Get(k)
		}
	}
	return dc.FormatDSN(), nil
}
