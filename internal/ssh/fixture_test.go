package ssh

// This file adapts the teacher's original internal/ssh/server.go — a
// subdomain-routing SSH tunnel host — down to the bare RFC 4254
// mechanics the tests in this package need to drive against: public-key
// auth, tcpip-forward bookkeeping, and forwarded-tcpip channel opening.
// It has no production use; it exists to give the client tests a real
// SSH server instead of a mock.

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// testServer is an in-process SSH server that accepts one well-known
// client key (or a password) and lets the test drive tcpip-forward
// acceptance and forwarded-tcpip channel opening directly, playing the
// role of both the SSH gateway and the external client that connects
// to the gateway's bound port.
type testServer struct {
	t        *testing.T
	listener net.Listener
	config   *ssh.ServerConfig

	mu           sync.Mutex
	lastConn     *ssh.ServerConn
	forwardReply func(tcpipForwardMsg) (ok bool, port uint32)
	sessionHook  func(channel ssh.Channel, wantReply func(bool))
}

// newTestServer starts listening on 127.0.0.1:0 and returns a server
// ready to accept exactly one incoming SSH connection per Accept call.
func newTestServer(t *testing.T, authorizedKey ssh.PublicKey, password string) *testServer {
	t.Helper()

	hostSigner := generateTestSigner(t)

	cfg := &ssh.ServerConfig{}
	if authorizedKey != nil {
		cfg.PublicKeyCallback = func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(authorizedKey.Marshal()) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unauthorized key")
		}
	}
	if password != "" {
		cfg.PasswordCallback = func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("wrong password")
		}
	}
	if authorizedKey == nil && password == "" {
		cfg.NoClientAuth = true
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	return &testServer{t: t, listener: ln, config: cfg}
}

func (s *testServer) addr() string {
	return s.listener.Addr().String()
}

func (s *testServer) close() {
	s.listener.Close()
}

// acceptOnce performs the handshake for a single incoming connection
// and services its global requests and channels until the connection
// closes. It runs in the caller's goroutine; tests invoke it via `go`.
func (s *testServer) acceptOnce() {
	nConn, err := s.listener.Accept()
	if err != nil {
		return
	}

	sshConn, chans, reqs, err := ssh.NewServerConn(nConn, s.config)
	if err != nil {
		nConn.Close()
		return
	}
	defer sshConn.Close()

	s.mu.Lock()
	s.lastConn = sshConn
	s.mu.Unlock()

	go func() {
		for newCh := range chans {
			if newCh.ChannelType() != "session" {
				newCh.Reject(ssh.UnknownChannelType, "only session channels supported")
				continue
			}
			channel, reqs, err := newCh.Accept()
			if err != nil {
				continue
			}
			go s.serviceSession(channel, reqs)
		}
	}()

	for req := range reqs {
		switch req.Type {
		case "tcpip-forward":
			var msg tcpipForwardMsg
			if err := ssh.Unmarshal(req.Payload, &msg); err != nil {
				req.Reply(false, nil)
				continue
			}
			ok, port := true, msg.Port
			if s.forwardReply != nil {
				ok, port = s.forwardReply(msg)
			} else if port == 0 {
				port = 40000
			}
			if !ok {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, ssh.Marshal(&struct{ Port uint32 }{port}))
		case "cancel-tcpip-forward":
			req.Reply(true, nil)
		default:
			req.Reply(false, nil)
		}
	}
}

// serviceSession answers "shell" requests on the auxiliary session
// channel. If a sessionHook is set it hands the channel over for the
// test to push banner text on stdout/stderr directly.
func (s *testServer) serviceSession(channel ssh.Channel, reqs <-chan *ssh.Request) {
	for req := range reqs {
		wantReply := req.WantReply
		if req.Type == "shell" {
			req.Reply(true, nil)
			if s.sessionHook != nil {
				s.sessionHook(channel, func(bool) {})
			}
			continue
		}
		if wantReply {
			req.Reply(false, nil)
		}
	}
}

// openForwardedChannel plays the role of an external client connecting
// to the gateway's bound port: it opens a forwarded-tcpip channel back
// over the most recent server connection, which the tunnel client's
// own HandleChannelOpen registration will receive and proxy.
func (s *testServer) openForwardedChannel(originAddr string, originPort uint32) (ssh.Channel, error) {
	s.mu.Lock()
	conn := s.lastConn
	s.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("no active connection")
	}
	payload := ssh.Marshal(&forwardedTCPPayload{
		Addr:       "",
		Port:       0,
		OriginAddr: originAddr,
		OriginPort: originPort,
	})
	channel, reqs, err := conn.OpenChannel(forwardedTCPChannelType, payload)
	if err != nil {
		return nil, err
	}
	go ssh.DiscardRequests(reqs)
	return channel, nil
}

func generateTestSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromSigner(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}
