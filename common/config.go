package common

import (
	"fmt"
	"net/netip"
	"time"
)

// TLSVersion selects which protocol versions a run may negotiate.
type TLSVersion int

const (
	TLSAny TLSVersion = iota
	TLS12
	TLS13
)

func (v TLSVersion) String() string {
	switch v {
	case TLS12:
		return "1.2"
	case TLS13:
		return "1.3"
	default:
		return "Any of 1.2 or 1.3"
	}
}

const (
	DefaultPeers   = 1
	DefaultWorkers = 1
	MaxWorkers     = 512

	DefaultCipher12 = "ECDHE-ECDSA-AES128-GCM-SHA256"
	DefaultCipher13 = "TLS_AES_256_GCM_SHA384"
)

// Config is the immutable run configuration. It is built once by the CLI and
// passed by value to every worker and the driver.
type Config struct {
	// Peer is the target endpoint.
	Peer netip.AddrPort

	// Peers is the target concurrency per worker.
	Peers int
	// Workers is the number of event-loop threads.
	Workers int

	// Handshakes caps the total number of TLS handshakes. The CLI defaults
	// it to UnboundedHandshakes; an explicit zero stops the run before any
	// work is done.
	Handshakes uint64
	// Timeout bounds the wall-clock run time; 0 means run until the cap or a
	// signal.
	Timeout Duration

	Version TLSVersion
	// Cipher restricts the cipher choice; empty means no restriction.
	Cipher     string
	UseTickets bool

	Debug bool

	// OutputFile, when set, receives the final summary as JSON.
	OutputFile string
	// MetricsAddr, when set, serves live counters over HTTP for Prometheus.
	MetricsAddr string
}

// UnboundedHandshakes is the default cap: large enough to never end a run.
const UnboundedHandshakes = ^uint64(0)

func (c Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout)
}

func (c Config) CipherLabel() string {
	if c.Cipher == "" {
		return "any"
	}
	return c.Cipher
}

func (c Config) Validate() error {
	if !c.Peer.IsValid() {
		return fmt.Errorf("invalid peer address %q", c.Peer)
	}
	if c.Peers < 1 {
		return fmt.Errorf("at least one peer per worker is required")
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("worker count %d out of range [1, %d]", c.Workers, MaxWorkers)
	}
	return nil
}
