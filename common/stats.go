package common

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

type (
	// Stats accumulates one sample population.
	Stats []float64

	// StatsSummary describes a population: mean with a confidence interval,
	// the extremes and the 95th percentile.
	StatsSummary struct {
		ZValue
		CLow   float64
		CHigh  float64
		Mean   float64
		StdDev float64
		Min    float64
		P95    float64
		Max    float64
	}

	ZValue struct {
		C float64
		Z float64
	}
)

var (
	C90 = ZValue{C: 90, Z: 1.645}
	C95 = ZValue{C: 95, Z: 1.96}
	C99 = ZValue{C: 99, Z: 2.58}
)

func (s *Stats) Update(v float64) {
	*s = append(*s, v)
}

func (s Stats) Count() int {
	return len(s)
}

func (s Stats) Mean() float64 {
	return stat.Mean(s, nil)
}

// Summary sorts the population in place. The 95th percentile uses the same
// index rule as the final report: element len*95/100 of the ascending order,
// i.e. 95% of samples are at or below it.
func (s Stats) Summary(z ZValue) StatsSummary {
	sort.Float64s(s)

	m, std := stat.MeanStdDev(s, nil)
	se := stat.StdErr(std, float64(s.Count()))

	return StatsSummary{
		ZValue: z,
		CLow:   m - z.Z*se,
		CHigh:  m + z.Z*se,
		Mean:   m,
		StdDev: std,
		Min:    s[0],
		P95:    s[len(s)*95/100],
		Max:    s[len(s)-1],
	}
}
