package perflib

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/aagor/tls-perf/common"
)

// PeersSlowStart caps how many peers a worker opens before the endpoint has
// proven it completes handshakes: the creation budget then grows by one per
// synchronous completion until the target concurrency is reached.
const PeersSlowStart = 10

// Worker runs one single-threaded event loop over a private poller and peer
// set. The only shared state it touches are the counters, the two run flags
// and, once at exit, the latency sketch.
type Worker struct {
	ID         int
	Cfg        common.Config
	Ct         *Counters
	Sketch     *LatencySketch
	Shutdown   *atomic.Bool
	StartStats *atomic.Bool
}

// Run pumps the loop until end-of-work. The returned error, if any, is a
// FatalError; per-connection failures never surface here.
func (w *Worker) Run() error {
	// The loop spins on epoll; keep it on its own OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	io, err := NewPoller()
	if err != nil {
		return err
	}
	defer io.Close()

	tf, err := NewTLSFactory(w.Cfg)
	if err != nil {
		return err
	}

	ls := NewLatencySampler()
	defer ls.Drain(w.Sketch)

	peers := make([]*Peer, 0, w.Cfg.Peers)
	defer func() {
		for _, p := range peers {
			p.disconnect()
		}
	}()

	activePeers := 0
	newPeers := min(w.Cfg.Peers, PeersSlowStart)

	// advance drives one peer and feeds the slow-start budget on a
	// synchronous completion.
	advance := func(p *Peer) error {
		done, err := p.Advance()
		if err != nil {
			return err
		}
		if done && activePeers+newPeers < w.Cfg.Peers {
			newPeers++
		}
		return nil
	}

	for !w.endOfWork() {
		for ; activePeers < w.Cfg.Peers && newPeers > 0; newPeers-- {
			p := NewPeer(activePeers, w.Cfg.Peer, io, tf, w.Ct, ls)
			peers = append(peers, p)
			activePeers++
			if err := advance(p); err != nil {
				return err
			}
		}

		if err := io.Wait(); err != nil {
			return err
		}
		for {
			idx, ok := io.NextReady()
			if !ok {
				break
			}
			if idx < 0 || idx >= len(peers) {
				return fatalf("poller returned unknown peer %d", idx)
			}
			if err := advance(peers[idx]); err != nil {
				return err
			}
		}

		// Reconnect the peers whose previous connection completed. Stop
		// draining once shutdown is flagged so the exit is prompt.
		io.SwapBacklog()
		for !w.Shutdown.Load() {
			idx, ok := io.NextBacklog()
			if !ok {
				break
			}
			if err := advance(peers[idx]); err != nil {
				return err
			}
		}

		if activePeers == w.Cfg.Peers && w.StartStats.CompareAndSwap(false, true) {
			fmt.Println("( All peers are active, start to gather statistics )")
		}
	}
	return nil
}

func (w *Worker) endOfWork() bool {
	return w.Shutdown.Load() || w.Ct.TotTLSHandshakes.Load() >= w.Cfg.Handshakes
}
