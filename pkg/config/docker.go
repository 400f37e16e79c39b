package config

import (
	"os"
	"sync"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/dsn"
)

const dockerHostGateway = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the process runs inside a Docker container.
// Detection is based on /.dockerenv and cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveDSNForDocker points a loopback DSN at the Docker host gateway when the
// job runs in a container, so DATABASE_URL values written for the host keep
// working. Other DSNs are returned unchanged.
func ResolveDSNForDocker(d dsn.DSN) (dsn.DSN, error) {
	return resolveDSNForDocker(d, IsRunningInDocker())
}

func resolveDSNForDocker(d dsn.DSN, inDocker bool) (dsn.DSN, error) {
	if !inDocker || d.IsZero() {
		return d, nil
	}
	switch d.Hostname() {
	case "localhost", "127.0.0.1":
	default:
		return d, nil
	}

	var opts []dsn.Option
	if port, ok := d.Port(); ok {
		opts = append(opts, dsn.WithPort(port))
	}
	if db, ok := d.Database(); ok {
		opts = append(opts, dsn.WithDatabase(db))
	}
	return dsn.New(d.Protocol(), d.Username(), d.Password(), dockerHostGateway, opts...)
}
