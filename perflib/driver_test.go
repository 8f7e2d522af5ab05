package perflib

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aagor/tls-perf/common"
)

func testDriver(startRecording bool) *Driver {
	var shutdown, startStats atomic.Bool
	startStats.Store(startRecording)
	d := NewDriver(common.Config{}, &Counters{}, &shutdown, &startStats)
	d.start = time.Now()
	d.lastSample = time.Now().Add(-time.Second)
	return d
}

func TestDriverSampleRecords(t *testing.T) {
	d := testDriver(true)
	d.Ct.TLSConnections.Store(1000)

	d.sample()

	if d.Measures != 1 {
		t.Error("measure count: ", d.Measures)
	}
	if len(d.History) != 1 {
		t.Fatal("history length: ", len(d.History))
	}
	// ~1000 completions over ~1s.
	if d.History[0] < 900 || d.History[0] > 1100 {
		t.Error("sample rate out of range: ", d.History[0])
	}
	if d.MaxHS != d.History[0] || d.MinHS != d.History[0] || d.AvgHS != d.History[0] {
		t.Error("aggregates of a single sample disagree: ", d.MaxHS, d.AvgHS, d.MinHS)
	}
	if got := d.Ct.TLSConnections.Load(); got != 0 {
		t.Error("window not consumed: ", got)
	}
}

func TestDriverSampleBeforeRampIsNotRecorded(t *testing.T) {
	d := testDriver(false)
	d.Ct.TLSConnections.Store(500)

	d.sample()

	if d.Measures != 0 || len(d.History) != 0 {
		t.Error("ramp-up sample was recorded: ", d.Measures, d.History)
	}
	if got := d.Ct.TLSConnections.Load(); got != 0 {
		t.Error("ramp-up sample must still consume the window: ", got)
	}
}

func TestDriverAggregates(t *testing.T) {
	d := testDriver(true)

	for _, rate := range []int32{300, 100, 200} {
		d.Ct.TLSConnections.Store(rate)
		d.lastSample = time.Now().Add(-time.Second)
		d.sample()
	}

	if d.Measures != 3 {
		t.Fatal("measure count: ", d.Measures)
	}
	if d.MaxHS < d.MinHS {
		t.Error("max under min: ", d.MaxHS, d.MinHS)
	}
	if d.MinHS <= 0 {
		t.Error("min was never set: ", d.MinHS)
	}
	if d.AvgHS < d.MinHS || d.AvgHS > d.MaxHS {
		t.Error("avg outside [min, max]: ", d.AvgHS)
	}
}

func TestDriverHistoryCap(t *testing.T) {
	d := testDriver(true)
	d.History = make([]int32, historyCap)

	d.Ct.TLSConnections.Store(100)
	d.sample()

	if len(d.History) != historyCap {
		t.Error("history grew past its cap: ", len(d.History))
	}
	if d.Measures != 1 {
		t.Error("capped samples still count as measures: ", d.Measures)
	}
}

func TestDriverEndOfWorkOnCap(t *testing.T) {
	var shutdown, startStats atomic.Bool
	ct := &Counters{}
	d := NewDriver(common.Config{Handshakes: 10}, ct, &shutdown, &startStats)

	if d.endOfWork() {
		t.Error("end of work before any handshake")
	}
	ct.TotTLSHandshakes.Store(10)
	if !d.endOfWork() {
		t.Error("cap reached but work continues")
	}
}

func TestDriverEndOfWorkUnbounded(t *testing.T) {
	var shutdown, startStats atomic.Bool
	ct := &Counters{}
	ct.TotTLSHandshakes.Store(1 << 40)
	d := NewDriver(common.Config{Handshakes: common.UnboundedHandshakes}, ct, &shutdown, &startStats)

	if d.endOfWork() {
		t.Error("unbounded run ended by itself")
	}
	shutdown.Store(true)
	if !d.endOfWork() {
		t.Error("shutdown flag ignored")
	}
}
