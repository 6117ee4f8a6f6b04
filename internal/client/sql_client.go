package client

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"users-service/internal/config"
	"users-service/internal/util"
)

// SQLClient wraps a database/sql pool opened with either the postgres
// (lib/pq) or the sqlite (modernc) driver.
type SQLClient struct {
	DB     *sql.DB
	driver string
}

func NewSQLClient(cfg config.DatabaseConfig) (*SQLClient, error) {
	dsn := cfg.DSN
	if cfg.Driver == config.DriverSQLite && !strings.Contains(dsn, "_pragma=foreign_keys") {
		dsn = appendParam(dsn, "_pragma=foreign_keys(1)")
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.Driver == config.DriverSQLite {
		// One long-lived connection keeps in-memory databases alive and
		// serialises writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	util.Info("SQL client initialized",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return &SQLClient{DB: db, driver: cfg.Driver}, nil
}

func appendParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

func (c *SQLClient) Driver() string {
	return c.driver
}

// Rebind rewrites '?' placeholders to '$n' for postgres and leaves them
// alone for sqlite.
func (c *SQLClient) Rebind(query string) string {
	if c.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (c *SQLClient) HealthCheck(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", c.driver, err)
	}
	var one int
	if err := c.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%s query failed: %w", c.driver, err)
	}
	return nil
}

func (c *SQLClient) Close() error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			util.Error("failed to close SQL client", zap.Error(err))
			return err
		}
		util.Info("SQL client closed", zap.String("driver", c.driver))
	}
	return nil
}
