package perflib

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aagor/tls-perf/common"
)

// ErrNoStats is returned when a run ended before a single throughput sample
// was recorded.
var ErrNoStats = errors.New("not enough statistics collected")

// Summary is the final run report, also the JSON output shape.
type Summary struct {
	Seconds    int    `json:"seconds"`
	Handshakes uint64 `json:"handshakes"`
	Errors     int32  `json:"errors"`

	MaxHS int32 `json:"hs_per_sec_max"`
	AvgHS int32 `json:"hs_per_sec_avg"`
	P95HS int32 `json:"hs_per_sec_95p"`
	MinHS int32 `json:"hs_per_sec_min"`

	LatMin uint64 `json:"latency_us_min"`
	LatAvg uint64 `json:"latency_us_avg"`
	LatP95 uint64 `json:"latency_us_95p"`
	LatMax uint64 `json:"latency_us_max"`

	LatStdDev float64 `json:"latency_us_stddev"`
	LatCILow  float64 `json:"latency_us_ci_low"`
	LatCIHigh float64 `json:"latency_us_ci_high"`

	LatencySamples int `json:"latency_samples"`

	// CPU consumed by this process over the run; filled by the caller.
	CPUUser float64 `json:"cpu_user_seconds"`
	CPUSys  float64 `json:"cpu_sys_seconds"`
	// Host conditions that may have skewed the measurement.
	Notes []string `json:"notes,omitempty"`
}

// Summarize folds the driver's window state and the drained latency sketch
// into the final summary. Sorting happens once, here.
func (d *Driver) Summarize(sk *LatencySketch) (*Summary, error) {
	if !d.StartStats.Load() || len(d.History) < 1 {
		return nil, ErrNoStats
	}

	// Descending: index size*95/100 is the rate at least 95% of the
	// measured seconds achieved.
	hist := append([]int32(nil), d.History...)
	sort.Slice(hist, func(i, j int) bool { return hist[i] > hist[j] })

	s := &Summary{
		Seconds:    d.Measures,
		Handshakes: d.Ct.TotTLSHandshakes.Load(),
		Errors:     d.Ct.ErrorCount.Load(),
		MaxHS:      d.MaxHS,
		AvgHS:      d.AvgHS,
		P95HS:      hist[len(hist)*95/100],
		MinHS:      d.MinHS,
	}

	// Ascending: index size*95/100 is the latency 95% of the sampled
	// handshakes stayed under.
	lat := append([]uint64(nil), sk.Samples()...)
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	s.LatencySamples = len(lat)
	if len(lat) > 0 {
		s.LatMin = lat[0]
		s.LatAvg = sk.Sum() / uint64(len(lat))
		s.LatP95 = lat[len(lat)*95/100]
		s.LatMax = lat[len(lat)-1]

		pop := make(common.Stats, len(lat))
		for i, l := range lat {
			pop[i] = float64(l)
		}
		sum := pop.Summary(common.C95)
		s.LatStdDev = sum.StdDev
		s.LatCILow = sum.CLow
		s.LatCIHigh = sum.CHigh
	}

	return s, nil
}

func (s *Summary) Write(w io.Writer) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, " TOTAL:                  SECONDS %d; HANDSHAKES %d\n",
		s.Seconds, s.Handshakes)
	fmt.Fprintf(w, " MEASURES (seconds):     MAX h/s %d; AVG h/s %d; 95P h/s %d; MIN h/s %d\n",
		s.MaxHS, s.AvgHS, s.P95HS, s.MinHS)
	if s.LatencySamples > 0 {
		fmt.Fprintf(w, " LATENCY (microseconds): MIN %d; AVG %d; 95P %d; MAX %d\n",
			s.LatMin, s.LatAvg, s.LatP95, s.LatMax)
		fmt.Fprintf(w, " LATENCY spread:         STDDEV %.0f; 95%% CI [%.0f, %.0f]\n",
			s.LatStdDev, s.LatCILow, s.LatCIHigh)
	}
	fmt.Fprintf(w, " CPU (seconds):          USER %.2f; SYS %.2f\n", s.CPUUser, s.CPUSys)
	for _, n := range s.Notes {
		fmt.Fprintf(w, " NOTE: %s\n", n)
	}
}
