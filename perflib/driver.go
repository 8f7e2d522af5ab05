package perflib

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/aagor/tls-perf/common"
)

// historyCap bounds the per-second throughput history to one hour.
const historyCap = 3600

// Driver samples the shared counters once per second, keeps the throughput
// window state (owned exclusively by the driver thread) and decides when the
// run ends: wall-clock timeout, termination signal or the handshake cap.
type Driver struct {
	Cfg        common.Config
	Ct         *Counters
	Shutdown   *atomic.Bool
	StartStats *atomic.Bool

	start      time.Time
	lastSample time.Time

	Measures int
	MaxHS    int32
	MinHS    int32
	AvgHS    int32
	History  []int32
}

func NewDriver(cfg common.Config, ct *Counters, shutdown, startStats *atomic.Bool) *Driver {
	return &Driver{Cfg: cfg, Ct: ct, Shutdown: shutdown, StartStats: startStats}
}

// Run blocks until end-of-work, printing one status line per second. It
// always leaves the shutdown flag set so the workers wind down.
func (d *Driver) Run(sigCh <-chan os.Signal) {
	d.start = time.Now()
	d.lastSample = d.start

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for !d.endOfWork() {
		select {
		case <-ticker.C:
			d.sample()
			if to := d.Cfg.TimeoutDuration(); to > 0 && time.Since(d.start) >= to {
				d.Shutdown.Store(true)
			}
		case sig := <-sigCh:
			glog.V(1).Infof("terminating on signal %v", sig)
			d.Shutdown.Store(true)
		}
	}
	d.Shutdown.Store(true)
}

// sample consumes the current one-second completion window and folds it into
// the run statistics. Samples taken while workers are still ramping are
// printed but not recorded.
func (d *Driver) sample() {
	conns := d.Ct.TakeWindow()

	now := time.Now()
	dt := now.Sub(d.lastSample).Milliseconds()
	if dt <= 0 {
		dt = 1
	}
	d.lastSample = now

	curr := int32(1000 * int64(conns) / dt)

	fmt.Printf("TLS hs in progress %d [%d h/s], TCP open conns %d [%d hs in progress], Errors %d\n",
		d.Ct.TLSHandshakes.Load(), curr,
		d.Ct.TCPConnections.Load(), d.Ct.TCPHandshakes.Load(),
		d.Ct.ErrorCount.Load())

	if !d.StartStats.Load() {
		return
	}

	d.Measures++
	if d.MaxHS < curr {
		d.MaxHS = curr
	}
	if curr != 0 && (d.MinHS > curr || d.MinHS == 0) {
		d.MinHS = curr
	}
	d.AvgHS = (d.AvgHS*int32(d.Measures-1) + curr) / int32(d.Measures)

	if len(d.History) >= historyCap {
		glog.Warning("benchmark is running for too long, the last history won't be stored")
		return
	}
	d.History = append(d.History, curr)
}

func (d *Driver) endOfWork() bool {
	return d.Shutdown.Load() || d.Ct.TotTLSHandshakes.Load() >= d.Cfg.Handshakes
}
