package ssh

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"unicode/utf8"

	"golang.org/x/crypto/ssh"
)

// eventHandler owns only the producer ends of the forward and message
// queues, so it stays trivially shareable with whatever goroutine the
// SSH driver happens to invoke it from. It never calls into user code
// directly; it only enqueues.
type eventHandler struct {
	forwards *forwardQueue
	messages *messageQueue
	stats    *statsCollector
	log      *logger

	keyChecker func(ssh.PublicKey) bool
}

func newEventHandler(forwards *forwardQueue, messages *messageQueue, stats *statsCollector, log *logger) *eventHandler {
	return &eventHandler{forwards: forwards, messages: messages, stats: stats, log: log}
}

// hostKeyCallback implements the pluggable server-key check. With no
// predicate installed, it accepts any key and logs a warning, per the
// spec's explicit "permissive by default" policy.
func (h *eventHandler) hostKeyCallback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	if h.keyChecker == nil {
		h.log.Warnf("accepting server host key for %s without verification", hostname)
		return nil
	}
	if h.keyChecker(key) {
		return nil
	}
	return errHostKeyRejected
}

// handleForwardedChannels drains the forwarded-tcpip channel-open
// requests the SSH client library surfaces and enqueues each accepted
// channel on the forward queue. Registering this handler (via
// client.HandleChannelOpen, wired up by the forward step) must happen
// before the tcpip-forward global request is sent, so no channel can
// arrive unhandled.
func (h *eventHandler) handleForwardedChannels(incoming <-chan ssh.NewChannel) {
	for newCh := range incoming {
		var payload forwardedTCPPayload
		originator := "unknown"
		if err := ssh.Unmarshal(newCh.ExtraData(), &payload); err == nil {
			originator = net.JoinHostPort(payload.OriginAddr, strconv.Itoa(int(payload.OriginPort)))
		}

		channel, reqs, err := newCh.Accept()
		if err != nil {
			h.log.Warnf("failed to accept forwarded-tcpip channel from %s: %v", originator, err)
			h.stats.connectionFailed()
			continue
		}
		go ssh.DiscardRequests(reqs)

		fc := &ForwardedConnection{channel: channel, originatorAddr: originator}
		if !h.forwards.trySend(fc) {
			h.log.Warnf("forward queue full, dropping connection from %s", originator)
			channel.Close()
			h.stats.connectionFailed()
			continue
		}
		h.stats.connectionAccepted()
	}
}

// drainDataStream reads the given reader, which a caller has already
// tied to either the auxiliary shell's normal or extended data stream,
// decoding whole UTF-8 text and publishing each line as a ServerMessage.
// Invalid byte sequences are dropped silently at debug level, never
// retained beyond this call.
func (h *eventHandler) drainDataStream(stream ServerMessageStream, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !utf8.Valid(line) {
			h.log.Debugf("dropping non-UTF-8 fragment on stream %d", stream)
			continue
		}
		msg := ServerMessage{Stream: stream, Text: string(line)}
		if !h.messages.trySend(msg) {
			h.log.Debugf("message queue full, dropping fragment")
			continue
		}
		h.stats.messageReceived()
	}
}
