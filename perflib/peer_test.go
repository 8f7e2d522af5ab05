package perflib

import (
	"testing"
	"time"

	"github.com/aagor/tls-perf/common"
)

// drivePeer advances the peer through its poller until one handshake
// completes, the way the worker loop would.
func drivePeer(t *testing.T, io *Poller, p *Peer) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		done, err := p.Advance()
		if err != nil {
			t.Fatal("advance: ", err)
		}
		if done {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("peer never completed a handshake")
		}
		if err := io.Wait(); err != nil {
			t.Fatal(err)
		}
		for {
			if _, ok := io.NextReady(); !ok {
				break
			}
		}
	}
}

func TestPeerHandshakeCycle(t *testing.T) {
	ap := startTLSServer(t)

	io, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer io.Close()

	tf, err := NewTLSFactory(common.Config{Version: common.TLS12, Peers: 1})
	if err != nil {
		t.Fatal(err)
	}

	ct := &Counters{}
	ls := NewLatencySampler()
	p := NewPeer(0, ap, io, tf, ct, ls)

	drivePeer(t, io, p)

	// After a successful handshake the peer has fully let go of the
	// connection and waits in the reconnect queue.
	if p.state != stateTCPConnect {
		t.Error("peer state after completion: ", p.state)
	}
	if p.fd != -1 {
		t.Error("peer kept its socket: ", p.fd)
	}
	if p.sess != nil {
		t.Error("peer kept its TLS session")
	}
	if p.polled {
		t.Error("peer still registered with the poller")
	}

	if got := ct.TotTLSHandshakes.Load(); got != 1 {
		t.Error("total handshakes: ", got)
	}
	if got := ct.TLSConnections.Load(); got != 1 {
		t.Error("window completions: ", got)
	}
	if got := ct.TLSHandshakes.Load(); got != 0 {
		t.Error("in-flight TLS handshakes: ", got)
	}
	if got := ct.TCPHandshakes.Load(); got != 0 {
		t.Error("in-flight TCP handshakes: ", got)
	}
	if got := ct.TCPConnections.Load(); got != 0 {
		t.Error("open TCP connections: ", got)
	}

	io.SwapBacklog()
	idx, ok := io.NextBacklog()
	if !ok || idx != 0 {
		t.Error("completed peer not queued for reconnect: ", idx, ok)
	}

	// The cycle restarts from a clean TCP connect.
	if _, err := p.Advance(); err != nil {
		t.Fatal("reconnect advance: ", err)
	}
	if p.state == stateTCPConnect {
		t.Error("peer did not start a new connection")
	}
	p.disconnect()
}

func TestPeerSamplesLatency(t *testing.T) {
	ap := startTLSServer(t)

	io, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer io.Close()

	tf, err := NewTLSFactory(common.Config{Version: common.TLS12, Peers: 1})
	if err != nil {
		t.Fatal(err)
	}

	ct := &Counters{}
	ls := NewLatencySampler()
	p := NewPeer(0, ap, io, tf, ct, ls)

	drivePeer(t, io, p)

	sk := &LatencySketch{}
	ls.Drain(sk)
	if len(sk.Samples()) != 1 {
		t.Fatal("one completed handshake should leave one sample: ", sk.Samples())
	}
	if sk.Samples()[0] == 0 {
		t.Error("sampled latency is zero")
	}
}
