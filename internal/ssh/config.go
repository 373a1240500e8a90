package ssh

import (
	"fmt"
	"time"
)

// Config holds the parameters needed to open a reverse SSH tunnel: where
// to connect, how to authenticate, which remote port to ask for, and
// which local service to hand forwarded connections to.
type Config struct {
	// ServerAddr is the hostname or IP of the SSH server.
	ServerAddr string
	// ServerPort is the SSH server's port, typically 22.
	ServerPort int
	// Username is the SSH username for authentication.
	Username string
	// KeyPath is the path to a private key file. Takes precedence over
	// Password when both are set.
	KeyPath string
	// Password is used for password authentication if KeyPath is empty.
	Password string
	// RemotePort is the port the server should listen on. 0 requests a
	// server-chosen port.
	RemotePort uint32
	// LocalAddr is the local service's address, typically "127.0.0.1".
	LocalAddr string
	// LocalPort is the local service's port.
	LocalPort int
	// Timeout bounds the SSH handshake. Zero means the default of one hour.
	// It is not applied as an inactivity timeout once the session is up.
	Timeout time.Duration
}

const defaultTimeout = time.Hour

// normalize fills in defaults and validates the config, returning an error
// wrapped as AuthenticationMissing for missing credentials.
func (c *Config) normalize() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerPort)
	}
	if c.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if c.KeyPath == "" && c.Password == "" {
		return newTunnelError(ErrAuthenticationMissing, fmt.Errorf("neither key path nor password set"))
	}
	if c.LocalAddr == "" {
		c.LocalAddr = "127.0.0.1"
	}
	if c.LocalPort <= 0 || c.LocalPort > 65535 {
		return fmt.Errorf("invalid local port %d", c.LocalPort)
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

func (c *Config) serverAddress() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

func (c *Config) localAddress() string {
	return fmt.Sprintf("%s:%d", c.LocalAddr, c.LocalPort)
}
