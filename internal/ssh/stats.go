package ssh

import "sync/atomic"

// Stats is a point-in-time snapshot of tunnel activity counters.
type Stats struct {
	ConnectionsAccepted int64
	ConnectionsFailed   int64
	ConnectionsActive   int64
	BytesCopied         int64
	MessagesReceived    int64
}

// statsCollector holds the live counters backing Stats. A single struct
// of atomics is enough here; the teacher's 256-way ShardedRouteManager
// sharding would be overkill for a handful of low-contention counters.
type statsCollector struct {
	accepted int64
	failed   int64
	active   int64
	bytes    int64
	messages int64
}

func (s *statsCollector) connectionAccepted() {
	atomic.AddInt64(&s.accepted, 1)
	atomic.AddInt64(&s.active, 1)
}

func (s *statsCollector) connectionFailed() {
	atomic.AddInt64(&s.failed, 1)
}

func (s *statsCollector) connectionClosed() {
	atomic.AddInt64(&s.active, -1)
}

func (s *statsCollector) addBytes(n int64) {
	atomic.AddInt64(&s.bytes, n)
}

func (s *statsCollector) messageReceived() {
	atomic.AddInt64(&s.messages, 1)
}

func (s *statsCollector) snapshot() Stats {
	return Stats{
		ConnectionsAccepted: atomic.LoadInt64(&s.accepted),
		ConnectionsFailed:   atomic.LoadInt64(&s.failed),
		ConnectionsActive:   atomic.LoadInt64(&s.active),
		BytesCopied:         atomic.LoadInt64(&s.bytes),
		MessagesReceived:    atomic.LoadInt64(&s.messages),
	}
}
