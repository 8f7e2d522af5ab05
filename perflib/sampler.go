package perflib

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// latencyN is the per-worker reservoir capacity.
const latencyN = 1024

// LatencySampler is a fixed-capacity reservoir of handshake latencies in
// microseconds. Writes advance by a stride that grows on each wrap, so later
// samples interleave with earlier ones instead of overwriting the reservoir
// front-to-back; the content stays temporally mixed even if the sampler is
// never drained.
type LatencySampler struct {
	i    uint32
	di   uint32
	stat [latencyN]uint64
}

func NewLatencySampler() *LatencySampler {
	return &LatencySampler{di: 1}
}

// Update records one handshake duration. Zero durations indicate a
// measurement bug and are dropped.
func (s *LatencySampler) Update(dt time.Duration) {
	us := uint64(dt / time.Microsecond)
	if us == 0 {
		glog.V(1).Info("bad zero latency")
		return
	}
	s.stat[s.i] = us

	s.i += s.di
	if s.i >= latencyN {
		s.i = 0
		if s.di++; s.di > latencyN/4 {
			s.di = 1
		}
	}
}

// Drain appends the reservoir's samples, up to the first empty slot, into the
// global sketch. Called once per worker at shutdown; never on the hot path.
func (s *LatencySampler) Drain(sk *LatencySketch) {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	for _, l := range s.stat {
		if l == 0 {
			break
		}
		sk.samples = append(sk.samples, l)
		sk.sum += l
	}
}

// LatencySketch aggregates every worker's drained samples. Written under the
// mutex during worker shutdown, read by the report after all workers joined.
type LatencySketch struct {
	mu      sync.Mutex
	samples []uint64
	sum     uint64
}

func (sk *LatencySketch) Samples() []uint64 {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	return sk.samples
}

func (sk *LatencySketch) Sum() uint64 {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	return sk.sum
}
