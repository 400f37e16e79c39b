package mssql

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/dsn"
)

const adapterType = "mssql"

// Config contains SQL Server connection options for SQL authentication.
type Config struct {
	Host     string
	Port     int
	Database string

	Username string
	Password string

	// Encrypt is "true", "false", "strict" or "disable".
	Encrypt                string
	TrustServerCertificate bool
	ConnectionTimeout      int

	// Params holds the remaining query parameters, such as "app name".
	Params map[string]string
}

var _ datasource.ConnectionConfig = (*Config)(nil)

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from the projection returned by dsn.DSN.Map.
// The database may carry a query string ("sales?encrypt=false"). A "database"
// query parameter is used when the path names no database.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Encrypt:           "true",
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	if host, ok := config["hostname"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := config["port"].(int); ok {
		cfg.Port = port
	}

	if username, ok := config["username"].(string); ok && username != "" {
		cfg.Username = username
	} else {
		return nil, fmt.Errorf("username is required for SQL authentication")
	}

	// Password can be empty for some scenarios
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
		switch strings.ToLower(key) {
		case "database":
			if c.Database == "" {
				c.Database = value
			}
		case "encrypt":
			c.Encrypt = strings.ToLower(value)
		case "trustservercertificate":
			trust, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid TrustServerCertificate: %q", value)
			}
			c.TrustServerCertificate = trust
		case "connection timeout":
			timeout, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid connection timeout: %q", value)
			}
			c.ConnectionTimeout = timeout
		default:
			if c.Params == nil {
				c.Params = make(map[string]string)
			}
			c.Params[key] = value
		}
	}
	return nil
}

func (c *Config) Type() string {
	return adapterType
}

// Validate checks if the config has all required fields for SQL authentication.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required for SQL authentication")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.Encrypt {
	case "true", "false", "strict", "disable":
	default:
		return fmt.Errorf("invalid encrypt: %q (must be true, false, strict or disable)", c.Encrypt)
	}
	if c.ConnectionTimeout < 0 {
		return fmt.Errorf("invalid connection timeout: %d", c.ConnectionTimeout)
	}
	return nil
}

// ConnectionString returns a sqlserver:// URL including the password.
func (c *Config) ConnectionString() string {
	d, err := dsn.New("sqlserver", c.Username, c.Password, c.Host, dsn.WithPort(c.Port))
	if err != nil {
		return ""
	}
	return d.ConnectionString() + "?" + c.query()
}

// String returns the connection URL with the password masked.
func (c *Config) String() string {
	d, err := dsn.New("sqlserver", c.Username, c.Password, c.Host, dsn.WithPort(c.Port))
	if err != nil {
		return ""
	}
	return d.String() + "?" + c.query()
}

// DriverConfig parses the settings with the go-mssqldb DSN parser. No
// connection is opened.
func (c *Config) DriverConfig() (msdsn.Config, error) {
	if err := c.Validate(); err != nil {
		return msdsn.Config{}, err
	}
	driverConfig, err := msdsn.Parse(c.ConnectionString())
	if err != nil {
		return msdsn.Config{}, fmt.Errorf("failed to build driver config for %s", c.String())
	}
	return driverConfig, nil
}

func (c *Config) query() string {
	query := url.Values{}
	for key, value := range c.Params {
		query.Set(key, value)
	}
	if c.Database != "" {
		query.Set("database", c.Database)
	}
	query.Set("encrypt", c.Encrypt)
	if c.TrustServerCertificate {
		query.Set("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Set("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}
	return query.Encode()
}
