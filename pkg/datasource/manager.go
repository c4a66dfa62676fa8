// Package datasource manages one bounded connection pool per configured
// database target. Descriptors are built once at startup with credential
// placeholders resolved; picking up new data sources requires a restart.
package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/common"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

// Pool parameters tuned for short-lived report-generation workloads.
// Deliberately fixed, not per-descriptor configuration.
const (
	maxOpenConns    = 5
	maxIdleConns    = 1
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 10 * time.Minute
	acquireTimeout  = 30 * time.Second
	testTimeout     = 5 * time.Second
)

// driverNames maps configured driver identifiers (including JDBC class
// names carried over from older deployments) to registered sql drivers.
var driverNames = map[string]string{
	"postgres":              "postgres",
	"postgresql":            "postgres",
	"org.postgresql.driver": "postgres",
	"sqlite":                "sqlite3",
	"sqlite3":               "sqlite3",
}

const defaultDriver = "postgres"

// Manager lazily creates and memoizes one *sql.DB pool per data source
// name. Pools live for the process lifetime and close only at shutdown.
type Manager struct {
	descriptors map[string]types.DataSourceDescriptor // immutable after construction

	mu    sync.Mutex
	pools map[string]*sql.DB
}

// NewManager builds descriptors from the datasource configuration map,
// resolving ${VAR} / ${VAR:default} placeholders in every value. Entries
// missing a url or username are skipped with a warning.
func NewManager(configs map[string]types.DataSourceConfig, resolver *common.Resolver) *Manager {
	descriptors := make(map[string]types.DataSourceDescriptor, len(configs))

	for name, cfg := range configs {
		d := types.DataSourceDescriptor{
			Name:     name,
			URL:      resolver.Resolve(cfg.URL),
			Username: resolver.Resolve(cfg.Username),
			Password: resolver.Resolve(cfg.Password),
			Driver:   resolver.Resolve(cfg.Driver),
		}
		if d.Driver == "" {
			d.Driver = defaultDriver
		}

		if d.URL == "" || d.Username == "" {
			log.Warn().Str("datasource", name).Msg("incomplete data source configuration, skipping")
			continue
		}

		descriptors[name] = d
		log.Info().Str("datasource", name).Str("url", RedactURL(d.URL)).Msg("loaded data source configuration")
	}

	log.Info().Int("count", len(descriptors)).Msg("data source configurations loaded")

	return &Manager{
		descriptors: descriptors,
		pools:       make(map[string]*sql.DB),
	}
}

// Names returns all configured data source names, sorted
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.descriptors))
	for name := range m.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultName returns "demo" when configured, else the first name
// alphabetically, else empty.
func (m *Manager) DefaultName() string {
	if _, ok := m.descriptors["demo"]; ok {
		return "demo"
	}
	names := m.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Descriptor returns the descriptor for a name
func (m *Manager) Descriptor(name string) (types.DataSourceDescriptor, bool) {
	d, ok := m.descriptors[name]
	return d, ok
}

// Acquire checks a connection out of the named pool. The caller owns it
// exclusively and must Close it on every exit path to return it.
func (m *Manager) Acquire(ctx context.Context, name string) (*sql.Conn, error) {
	pool, err := m.pool(name)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	conn, err := pool.Conn(acquireCtx)
	if err != nil {
		return nil, &types.ConnectionError{Name: name, Cause: err}
	}
	return conn, nil
}

// TestConnection acquires and validates a connection within a short
// timeout, reporting success as a boolean instead of an error.
func (m *Manager) TestConnection(name string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	conn, err := m.Acquire(ctx, name)
	if err != nil {
		log.Warn().Err(err).Str("datasource", name).Msg("connection test failed")
		return false
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		log.Warn().Err(err).Str("datasource", name).Msg("connection test failed")
		return false
	}
	return true
}

// pool returns the pool for a name, creating it on first use. The map
// lock is held across sql.Open, which only validates the DSN and never
// dials, so no blocking I/O happens under the lock.
func (m *Manager) pool(name string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.pools[name]; ok {
		return db, nil
	}

	d, ok := m.descriptors[name]
	if !ok {
		return nil, &types.ErrUnknownDataSource{Name: name}
	}

	driver, dsn, err := buildDSN(d)
	if err != nil {
		return nil, &types.ConnectionError{Name: name, Cause: err}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &types.ConnectionError{Name: name, Cause: err}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	m.pools[name] = db
	log.Info().Str("datasource", name).Str("driver", driver).Msg("created connection pool")
	return db, nil
}

// Close shuts down every pool. Called once at process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, db := range m.pools {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Str("datasource", name).Msg("error closing connection pool")
		}
	}
	m.pools = make(map[string]*sql.DB)
}

// buildDSN produces the driver-specific DSN, injecting credentials into
// URL-shaped connection strings.
func buildDSN(d types.DataSourceDescriptor) (driver, dsn string, err error) {
	driver, ok := driverNames[strings.ToLower(d.Driver)]
	if !ok {
		return "", "", fmt.Errorf("unsupported driver: %s", d.Driver)
	}

	switch driver {
	case "sqlite3":
		// file path or :memory:; credentials do not apply
		return driver, d.URL, nil
	default:
		u, err := url.Parse(d.URL)
		if err != nil {
			return "", "", fmt.Errorf("invalid data source url")
		}
		if d.Username != "" {
			u.User = url.UserPassword(d.Username, d.Password)
		}
		return driver, u.String(), nil
	}
}

// RedactURL strips credentials from a connection URL for logging
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		// never leak an unparseable DSN, it may embed credentials
		return "<redacted>"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}
