package ssh

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Client drives one reverse SSH tunnel: it authenticates, requests a
// remote port forward, and proxies every forwarded-tcpip channel the
// server opens to the configured local service. Each Client instance
// is self-contained; running multiple tunnels means instantiating
// multiple Clients.
type Client struct {
	cfg   Config
	log   *logger
	stats statsCollector

	mu                sync.Mutex
	conn              *ssh.Client
	handler           *eventHandler
	cancel            context.CancelFunc
	closed            bool
	pendingKeyChecker func(ssh.PublicKey) bool
}

// NewClient creates a tunnel client ready to Run. l may be nil, in
// which case logging is discarded.
func NewClient(cfg Config, l *log.Logger) *Client {
	return &Client{cfg: cfg, log: newLogger(l)}
}

// SetServerKeyChecker installs a predicate that decides whether to
// accept the server's host key. Without one, the client accepts any
// key and logs a warning — production deployments against untrusted
// networks must replace this.
func (c *Client) SetServerKeyChecker(pred func(ssh.PublicKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingKeyChecker = pred
	if c.handler != nil {
		c.handler.keyChecker = pred
	}
}

// Stats returns a snapshot of the client's activity counters.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// Run is equivalent to RunWithMessageHandler with a no-op callback.
func (c *Client) Run(ctx context.Context) error {
	return c.RunWithMessageHandler(ctx, func(ServerMessage) {})
}

// RunWithMessageHandler connects, authenticates, requests the remote
// forward, and blocks — proxying forwarded connections and invoking f
// for each server message fragment, in receive order — until ctx is
// cancelled, the session ends, or a fatal error occurs. Non-fatal
// errors (local dial failures, a refused auxiliary shell, a dropped
// backpressured channel) are logged and never escape Run.
func (c *Client) RunWithMessageHandler(ctx context.Context, f func(ServerMessage)) error {
	if err := c.cfg.normalize(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	forwards := newForwardQueue()
	messages := newMessageQueue()
	handler := newEventHandler(forwards, messages, &c.stats, c.log)

	c.mu.Lock()
	if c.pendingKeyChecker != nil {
		handler.keyChecker = c.pendingKeyChecker
	}
	c.handler = handler
	c.cancel = cancel
	c.mu.Unlock()

	conn, err := connect(runCtx, &c.cfg, handler)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer conn.Close()

	if err := requestForward(conn, &c.cfg, handler); err != nil {
		return err
	}
	openAuxiliaryShell(conn, handler)

	var wg sync.WaitGroup
	var proxyWG sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		c.runForwarder(runCtx, forwards, &proxyWG)
	}()

	go func() {
		defer wg.Done()
		c.runMessagePump(runCtx, messages, f)
	}()

	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- conn.Wait()
	}()

	select {
	case <-runCtx.Done():
	case err := <-sessionErr:
		cancel()
		if err != nil {
			c.log.Infof("ssh session ended: %v", err)
		}
	}

	wg.Wait()
	// Every proxy unit reacts to runCtx's cancellation by closing both of
	// its halves, but that close is async; wait for every in-flight copy
	// to actually finish before Run returns, per the shutdown contract.
	proxyWG.Wait()
	return nil
}

// runForwarder drains the forward queue, spawning a proxy unit for
// every accepted forwarded connection until the context is cancelled.
// Each spawned unit is tracked on proxyWG so the caller can await it.
func (c *Client) runForwarder(ctx context.Context, forwards *forwardQueue, proxyWG *sync.WaitGroup) {
	for {
		select {
		case <-ctx.Done():
			return
		case fc, ok := <-forwards.recv():
			if !ok {
				return
			}
			proxyWG.Add(1)
			go func() {
				defer proxyWG.Done()
				runProxy(ctx, &c.cfg, fc, &c.stats, c.log)
			}()
		}
	}
}

// runMessagePump drains the message queue, invoking f for each
// fragment in receive order until the context is cancelled.
func (c *Client) runMessagePump(ctx context.Context, messages *messageQueue, f func(ServerMessage)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages.recv():
			if !ok {
				return
			}
			f(msg)
		}
	}
}

// Close tears down the SSH session, if one is active, and cancels any
// in-flight Run call. Proxy units react by closing both of their
// halves and exiting; Close does not wait for them.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("closing ssh connection: %w", err)
		}
	}
	return nil
}
