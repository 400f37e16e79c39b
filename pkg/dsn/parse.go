package dsn

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	protocolPattern = regexp.MustCompile(`^([^:]+)://`)
	// Greedy on the left, so the split happens at the last '@' that still
	// leaves a non-empty host part.
	hostSeparatorPattern = regexp.MustCompile(`(?s)^(.+)@(.+)$`)
)

// encodedColon is how a colon inside a username or password appears once
// percent-encoded.
const encodedColon = "%3A"

// Parse decomposes raw into a DSN. Every failure is a *ParseError matching
// ErrInvalidFormat.
func Parse(raw string) (DSN, error) {
	d, err := parse(raw)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return DSN{}, err
		}
		return DSN{}, &ParseError{Err: err}
	}
	return d, nil
}

func parse(raw string) (DSN, error) {
	m := protocolPattern.FindStringSubmatch(raw)
	if m == nil {
		return DSN{}, ErrProtocolNotFound
	}
	protocol := m[1]
	remaining := raw[len(m[0]):]

	parts := hostSeparatorPattern.FindStringSubmatch(remaining)
	if parts == nil {
		return DSN{}, ErrMissingHostSeparator
	}
	credentials, hostPart := parts[1], parts[2]

	sep := credentialSeparator(credentials)
	if sep < 0 {
		return DSN{}, ErrMissingCredentialSeparator
	}

	username := unquote(credentials[:sep])
	password := unquote(credentials[sep+1:])

	var opts []Option

	hostAndPort := hostPart
	if i := strings.IndexByte(hostPart, '/'); i >= 0 {
		hostAndPort = hostPart[:i]
		opts = append(opts, WithDatabase(hostPart[i+1:]))
	}

	hostname := hostAndPort
	if i := strings.LastIndexByte(hostAndPort, ':'); i >= 0 {
		hostname = hostAndPort[:i]
		port, err := parsePort(hostAndPort[i+1:])
		if err != nil {
			return DSN{}, err
		}
		opts = append(opts, WithPort(port))
	}

	return New(protocol, username, password, hostname, opts...)
}

// credentialSeparator returns the index of the first colon in credentials that
// is not part of an encoded colon, or -1.
func credentialSeparator(credentials string) int {
	for i := 0; i < len(credentials); {
		if strings.HasPrefix(credentials[i:], encodedColon) {
			i += len(encodedColon)
			continue
		}
		if credentials[i] == ':' {
			return i
		}
		i++
	}
	return -1
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidPort, s)
	}
	return port, nil
}
