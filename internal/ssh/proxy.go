package ssh

import (
	"context"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
)

// proxyBufferSize is the transfer buffer size for each copy direction,
// per the spec's literal ~8 KiB.
const proxyBufferSize = 8 << 10

var proxyBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, proxyBufferSize)
		return &buf
	},
}

// halfCloseWriter is implemented by both ssh.Channel and *net.TCPConn;
// it lets one direction of a copy signal "no more data" without
// tearing down the other direction.
type halfCloseWriter interface {
	CloseWrite() error
}

// runProxy dials the local service and bridges it with fc's forwarded
// channel, running both copy directions concurrently so neither
// direction can block the other — a strictly sequential implementation
// would deadlock any interactive protocol. It returns once both
// directions have finished.
func runProxy(ctx context.Context, cfg *Config, fc *ForwardedConnection, stats *statsCollector, log *logger) {
	defer stats.connectionClosed()

	local, err := net.Dial("tcp", cfg.localAddress())
	if err != nil {
		log.Warnf("local dial %s failed: %v", cfg.localAddress(), err)
		fc.channel.Close()
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			fc.channel.Close()
			local.Close()
		case <-done:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		n, err := copyBuffered(local, fc.channel)
		stats.addBytes(n)
		if err != nil && err != io.EOF {
			log.Debugf("remote->local copy ended: %v", err)
		}
		halfClose(local)
	}()

	go func() {
		defer wg.Done()
		n, err := copyBuffered(fc.channel, local)
		stats.addBytes(n)
		if err != nil && err != io.EOF {
			log.Debugf("local->remote copy ended: %v", err)
		}
		fc.channel.CloseWrite()
	}()

	wg.Wait()
	local.Close()
	fc.channel.Close()
}

func copyBuffered(dst io.Writer, src io.Reader) (int64, error) {
	bufp := proxyBufPool.Get().(*[]byte)
	defer proxyBufPool.Put(bufp)
	return io.CopyBuffer(dst, src, *bufp)
}

func halfClose(conn net.Conn) {
	if hc, ok := conn.(halfCloseWriter); ok {
		hc.CloseWrite()
		return
	}
	conn.Close()
}

// ensure ssh.Channel satisfies halfCloseWriter at compile time.
var _ halfCloseWriter = ssh.Channel(nil)
