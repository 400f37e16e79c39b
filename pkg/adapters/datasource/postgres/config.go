package postgres

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/dsn"
)

const adapterType = "postgres"

var sslModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "allow", "prefer", "require", "verify-ca", "verify-full"

	// Params holds the remaining query parameters of the DSN, such as
	// application_name or connect_timeout.
	Params map[string]string
}

var _ datasource.ConnectionConfig = (*Config)(nil)

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode, the same as libpq's.
func DefaultSSLMode() string {
	return "prefer"
}

// FromMap creates a Config from the projection returned by dsn.DSN.Map.
// The database may carry a query string ("mydb?sslmode=disable"); its
// parameters are split into SSLMode and Params.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		SSLMode: DefaultSSLMode(),
	}

	if host, ok := config["hostname"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := config["port"].(int); ok {
		cfg.Port = port
	}

	if user, ok := config["username"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok {
		name, rawQuery, _ := strings.Cut(database, "?")
		cfg.Database = name
		if rawQuery != "" {
			if err := cfg.applyQuery(rawQuery); err != nil {
				return nil, err
			}
		}
	}

	return cfg, nil
}

func (c *Config) applyQuery(rawQuery string) error {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return fmt.Errorf("invalid query parameters: %w", err)
	}
	for key := range values {
		value := values.Get(key)
		if key == "sslmode" {
			c.SSLMode = value
			continue
		}
		if c.Params == nil {
			c.Params = make(map[string]string)
		}
		c.Params[key] = value
	}
	return nil
}

func (c *Config) Type() string {
	return adapterType
}

// Validate checks that the settings are complete and consistent.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if !sslModes[c.SSLMode] {
		return fmt.Errorf("invalid sslmode: %q", c.SSLMode)
	}
	return nil
}

// ConnectionString returns a libpq URL including the password.
func (c *Config) ConnectionString() string {
	d, err := c.dsn()
	if err != nil {
		return ""
	}
	return d.ConnectionString() + "?" + c.query()
}

// String returns the connection URL with the password masked.
func (c *Config) String() string {
	d, err := c.dsn()
	if err != nil {
		return ""
	}
	return d.String() + "?" + c.query()
}

// ConnConfig parses the settings into a pgx configuration. No connection is
// opened.
func (c *Config) ConnConfig() (*pgx.ConnConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	connConfig, err := pgx.ParseConfig(c.ConnectionString())
	if err != nil {
		// pgx errors quote the connection string; keep only the kind of failure.
		return nil, fmt.Errorf("failed to build pgx config for %s", c.String())
	}
	return connConfig, nil
}

func (c *Config) dsn() (dsn.DSN, error) {
	opts := []dsn.Option{dsn.WithPort(c.Port)}
	if c.Database != "" {
		opts = append(opts, dsn.WithDatabase(url.PathEscape(c.Database)))
	}
	return dsn.New("postgresql", c.User, c.Password, c.Host, opts...)
}

func (c *Config) query() string {
	values := url.Values{}
	for key, value := range c.Params {
		values.Set(key, value)
	}
	values.Set("sslmode", c.SSLMode)
	return values.Encode()
}
