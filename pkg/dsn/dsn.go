// Package dsn parses and renders database connection strings of the form
//
//	<scheme>://<user>:<password>@<host>[:<port>][/<database>]
//
// where user and password are percent-encoded. A DSN is an immutable value; its
// canonical connection string is computed once when the value is built.
//
// The password is sensitive. String, GoString, MarshalLogObject and MarshalYAML
// all mask it; only ConnectionString, Password and Map expose it.
package dsn

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	// Mask replaces the password in the display form of a DSN.
	Mask = "****"

	// Format describes the accepted syntax for help output.
	Format = "<scheme>://<user>:<password>@<host>[:<port>][/<database>]"
)

// DSN is a parsed data source name.
type DSN struct {
	protocol    string
	username    string
	password    string
	hostname    string
	port        int
	hasPort     bool
	database    string
	hasDatabase bool

	connectionString string
}

// Option configures optional DSN parts in New.
type Option func(*DSN)

// WithPort sets the port.
func WithPort(port int) Option {
	return func(d *DSN) {
		d.port = port
		d.hasPort = true
	}
}

// WithDatabase sets the database path segment. It is rendered verbatim.
func WithDatabase(database string) Option {
	return func(d *DSN) {
		d.database = database
		d.hasDatabase = true
	}
}

// New builds a DSN from its parts and computes the canonical connection string.
// Username and password are given decoded.
func New(protocol, username, password, hostname string, opts ...Option) (DSN, error) {
	d := DSN{
		protocol: protocol,
		username: username,
		password: password,
		hostname: hostname,
	}
	for _, opt := range opts {
		opt(&d)
	}

	if err := d.validate(); err != nil {
		return DSN{}, &ParseError{Err: err}
	}

	d.connectionString = d.render(quote(d.username), quote(d.password))
	return d, nil
}

func (d *DSN) validate() error {
	if d.protocol == "" || strings.ContainsAny(d.protocol, ":/") {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, d.protocol)
	}
	if d.hostname == "" {
		return ErrEmptyHostname
	}
	if strings.ContainsAny(d.hostname, "/@") {
		return fmt.Errorf("%w: %q", ErrInvalidHostname, d.hostname)
	}
	// Without a port, a colon in the hostname would be read back as one.
	if !d.hasPort && strings.Contains(d.hostname, ":") {
		return fmt.Errorf("%w: %q has a colon but no port", ErrInvalidHostname, d.hostname)
	}
	if d.hasPort && d.port < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, d.port)
	}
	return nil
}

func (d DSN) render(user, password string) string {
	var b strings.Builder
	b.WriteString(d.protocol)
	b.WriteString("://")
	b.WriteString(user)
	b.WriteByte(':')
	b.WriteString(password)
	b.WriteByte('@')
	b.WriteString(d.hostname)
	if d.hasPort {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(d.port))
	}
	if d.hasDatabase {
		b.WriteByte('/')
		b.WriteString(d.database)
	}
	return b.String()
}

func (d DSN) Protocol() string { return d.protocol }
func (d DSN) Username() string { return d.username }
func (d DSN) Password() string { return d.password }
func (d DSN) Hostname() string { return d.hostname }

// Port returns the port and whether one was given.
func (d DSN) Port() (int, bool) { return d.port, d.hasPort }

// Database returns the database segment and whether one was given.
func (d DSN) Database() (string, bool) { return d.database, d.hasDatabase }

// ConnectionString returns the canonical, percent-encoded form including the
// plaintext password. Do not log it.
func (d DSN) ConnectionString() string { return d.connectionString }

// IsZero reports whether d was never built.
func (d DSN) IsZero() bool { return d.protocol == "" }

// Equal reports whether both DSNs carry the same six fields.
func (d DSN) Equal(other DSN) bool {
	return d.protocol == other.protocol &&
		d.username == other.username &&
		d.password == other.password &&
		d.hostname == other.hostname &&
		d.hasPort == other.hasPort && d.port == other.port &&
		d.hasDatabase == other.hasDatabase && d.database == other.database
}

// String returns the display form with the password replaced by Mask.
// The username is shown as given, not percent-encoded, so the result can differ
// from ConnectionString beyond the password.
func (d DSN) String() string {
	if d.IsZero() {
		return ""
	}
	return d.render(d.username, Mask)
}

// GoString keeps %#v from printing the password.
func (d DSN) GoString() string {
	return "dsn.DSN(" + strconv.Quote(d.String()) + ")"
}

// Map projects the DSN into a generic map keyed by field name.
// The map carries the plaintext password. Absent port or database map to nil.
func (d DSN) Map() map[string]any {
	m := map[string]any{
		"protocol": d.protocol,
		"username": d.username,
		"password": d.password,
		"hostname": d.hostname,
		"port":     nil,
		"database": nil,
	}
	if d.hasPort {
		m["port"] = d.port
	}
	if d.hasDatabase {
		m["database"] = d.database
	}
	return m
}

// MarshalLogObject implements zapcore.ObjectMarshaler without the password.
func (d DSN) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("protocol", d.protocol)
	enc.AddString("username", d.username)
	enc.AddString("password", Mask)
	enc.AddString("hostname", d.hostname)
	if d.hasPort {
		enc.AddInt("port", d.port)
	}
	if d.hasDatabase {
		enc.AddString("database", d.database)
	}
	return nil
}

// MarshalYAML renders the masked display form.
func (d DSN) MarshalYAML() (any, error) {
	return d.String(), nil
}
