// Package perflib implements the TLS handshake generation engine: shared
// throughput counters, per-worker latency sampling, an epoll-based poller,
// the peer state machine that cycles connect / handshake / disconnect, the
// worker event loop and the driver that samples throughput once per second.
package perflib

import "sync/atomic"

const cacheLineSize = 64

// Counters is the process-wide statistics aggregate. All fields are mutated
// with plain atomic arithmetic from every worker; no ordering between
// counters is required, each one only has to be race-free on its own. The
// leading and trailing pads keep the hot fields off anyone else's cache line.
type Counters struct {
	_ [cacheLineSize]byte

	// TotTLSHandshakes counts completed TLS handshakes over the whole run.
	// Monotonic; also the end-of-work cap condition.
	TotTLSHandshakes atomic.Uint64
	// TotTCPConnections counts TCP connections ever established. Monotonic;
	// backs the TCP cold-start guard.
	TotTCPConnections atomic.Uint64

	// TCPHandshakes is the number of TCP handshakes in flight.
	TCPHandshakes atomic.Int32
	// TCPConnections is the number of currently established TCP connections.
	TCPConnections atomic.Int32
	// TLSHandshakes is the number of TLS handshakes in flight.
	TLSHandshakes atomic.Int32
	// TLSConnections counts handshakes completed in the current one-second
	// window; the driver consumes and resets it on every sample.
	TLSConnections atomic.Int32
	// ErrorCount counts transient per-connection failures.
	ErrorCount atomic.Int32

	_ [cacheLineSize]byte
}

// TakeWindow snapshots the current window's completions and subtracts the
// snapshot from the counter, so completions landing between the load and the
// subtraction are carried into the next window instead of being lost.
func (c *Counters) TakeWindow() int32 {
	n := c.TLSConnections.Load()
	c.TLSConnections.Add(-n)
	return n
}
