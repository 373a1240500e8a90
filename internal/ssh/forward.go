package ssh

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

const forwardedTCPChannelType = "forwarded-tcpip"

// requestForward issues the tcpip-forward global request and starts the
// goroutine that drains forwarded-tcpip channels into the forward
// queue. The handler for forwarded-tcpip is registered before the
// request is sent, so the server can never race us with a channel we
// are not ready to accept.
//
// The bind address is always the empty string. This is load-bearing:
// hosted services such as localhost.run key their DNS-driven response
// on the empty-string convention of RFC 4254 §7.1 and error out
// ("missing _lhr TXT record on 0.0.0.0") if "0.0.0.0" is sent instead.
// golang.org/x/crypto/ssh's own Client.Listen also keys accepted
// channels on the exact bind-address string it sent, which breaks
// against such servers when they echo back a different address; this
// is why the forward queue is filled by our own HandleChannelOpen
// registration rather than by Client.Listen.
func requestForward(client *ssh.Client, cfg *Config, handler *eventHandler) error {
	incoming := client.HandleChannelOpen(forwardedTCPChannelType)
	if incoming == nil {
		return newTunnelError(ErrForwardRequestRejected, fmt.Errorf("forwarded-tcpip handler already registered"))
	}

	msg := tcpipForwardMsg{Addr: "", Port: cfg.RemotePort}
	ok, _, err := client.SendRequest("tcpip-forward", true, ssh.Marshal(&msg))
	if err != nil {
		return newTunnelError(ErrForwardRequestRejected, fmt.Errorf("tcpip-forward request: %w", err))
	}
	if !ok {
		return newTunnelError(ErrForwardRequestRejected, fmt.Errorf("server rejected tcpip-forward request"))
	}

	go handler.handleForwardedChannels(incoming)
	return nil
}

// openAuxiliaryShell opens a session channel directly (bypassing
// ssh.Client.NewSession, which offers no way to send a "shell" request
// with want_reply=false) and requests a shell without a PTY and without
// waiting for a reply, solely to elicit welcome/banner text (and, for
// hosted tunneling services, the assigned public URL) onto the
// session's normal and extended data streams. Failure here is logged
// and does not fail the run: forwarding works independently of this
// auxiliary channel.
func openAuxiliaryShell(client *ssh.Client, handler *eventHandler) {
	channel, reqs, err := client.OpenChannel("session", nil)
	if err != nil {
		handler.log.Warnf("auxiliary shell unavailable: open session: %v", err)
		return
	}
	go ssh.DiscardRequests(reqs)

	if _, err := channel.SendRequest("shell", false, nil); err != nil {
		handler.log.Warnf("auxiliary shell unavailable: shell request: %v", err)
		channel.Close()
		return
	}

	go func() {
		defer channel.Close()
		handler.drainDataStream(StreamStdout, channel)
	}()
	go handler.drainDataStream(StreamStderr, channel.Stderr())
}
