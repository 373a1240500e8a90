package ssh

import (
	"golang.org/x/crypto/ssh"
)

// ForwardedConnection is an owned handle to a server-opened
// forwarded-tcpip channel, plus the originating peer address as the
// server reported it. It is created by the event handler and
// transferred exactly once into the forward queue.
type ForwardedConnection struct {
	channel        ssh.Channel
	originatorAddr string
}

// OriginatorAddr returns the printable "host:port" the server reported
// for the external client that triggered this forwarded connection.
func (f *ForwardedConnection) OriginatorAddr() string {
	return f.originatorAddr
}

func (f *ForwardedConnection) Close() error {
	return f.channel.Close()
}

// ServerMessageStream identifies which SSH data stream a ServerMessage
// fragment came from.
type ServerMessageStream int

const (
	StreamStdout ServerMessageStream = iota
	StreamStderr
)

// ServerMessage is a UTF-8 text fragment decoded from the auxiliary
// shell channel's normal or extended data stream.
type ServerMessage struct {
	Stream ServerMessageStream
	Text   string
}

// forwardQueueCapacity bounds queue B. A full queue means the handler
// drops the incoming channel rather than block the SSH driver goroutine.
const forwardQueueCapacity = 32

// messageQueueCapacity bounds queue C.
const messageQueueCapacity = 256

// forwardQueue is the one-producer/one-consumer queue of accepted
// forwarded-tcpip channels (component B).
type forwardQueue struct {
	ch chan *ForwardedConnection
}

func newForwardQueue() *forwardQueue {
	return &forwardQueue{ch: make(chan *ForwardedConnection, forwardQueueCapacity)}
}

// trySend enqueues fc without blocking. Returns false if the queue is
// full, in which case the caller must close fc itself.
func (q *forwardQueue) trySend(fc *ForwardedConnection) bool {
	select {
	case q.ch <- fc:
		return true
	default:
		return false
	}
}

func (q *forwardQueue) recv() <-chan *ForwardedConnection {
	return q.ch
}

// messageQueue is the multi-producer/single-consumer queue of
// server-emitted text fragments (component C).
type messageQueue struct {
	ch chan ServerMessage
}

func newMessageQueue() *messageQueue {
	return &messageQueue{ch: make(chan ServerMessage, messageQueueCapacity)}
}

// trySend enqueues msg without blocking. Returns false if the queue is
// full, in which case the fragment is dropped.
func (q *messageQueue) trySend(msg ServerMessage) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}

func (q *messageQueue) recv() <-chan ServerMessage {
	return q.ch
}
