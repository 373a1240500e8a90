package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// connect opens the transport to cfg's server and runs authentication,
// offering only the private key when one is configured and the password
// only when no key is set. It returns the authenticated client.
func connect(ctx context.Context, cfg *Config, handler *eventHandler) (*ssh.Client, error) {
	authMethods, err := buildAuthMethods(cfg)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            authMethods,
		HostKeyCallback: handler.hostKeyCallback,
		Timeout:         cfg.Timeout,
	}

	addr := cfg.serverAddress()

	var dialer net.Dialer
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, newTunnelError(ErrTransportConnectFailed, fmt.Errorf("dial %s: %w", addr, err))
	}

	// ssh.NewClientConn ignores ClientConfig.Timeout (only ssh.Dial uses
	// it), so bound the handshake with a deadline on the raw connection.
	tcpConn.SetDeadline(time.Now().Add(cfg.Timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshConfig)
	if err != nil {
		tcpConn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, newTunnelError(ErrAuthenticationFailed, err)
		}
		return nil, newTunnelError(ErrTransportConnectFailed, err)
	}
	tcpConn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	return client, nil
}

// buildAuthMethods picks key or password authentication per cfg,
// failing with AuthenticationMissing when neither is configured (this
// is also checked by Config.normalize, but kept here defensively since
// buildAuthMethods is the sole place that reads the key off disk).
func buildAuthMethods(cfg *Config) ([]ssh.AuthMethod, error) {
	if cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, newTunnelError(ErrAuthenticationFailed, fmt.Errorf("read private key %s: %w", cfg.KeyPath, err))
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, newTunnelError(ErrAuthenticationFailed, fmt.Errorf("parse private key: %w", err))
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if cfg.Password != "" {
		return []ssh.AuthMethod{ssh.Password(cfg.Password)}, nil
	}
	return nil, newTunnelError(ErrAuthenticationMissing, fmt.Errorf("neither key path nor password set"))
}
