package bench

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sys/unix"

	"github.com/aagor/tls-perf/common"
	"github.com/aagor/tls-perf/env"
)

// CPUStat is one machine-wide CPU reading, in seconds per category summed
// over all cores.
type CPUStat struct {
	User   float64
	System float64
	Idle   float64
	Steal  float64
}

func MachineCPUStat() CPUStat {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return CPUStat{}
	}
	t := times[0]
	return CPUStat{
		User:   t.User + t.Nice,
		System: t.System + t.Irq + t.Softirq,
		Idle:   t.Idle + t.Iowait,
		Steal:  t.Steal,
	}
}

func (s CPUStat) Sub(o CPUStat) CPUStat {
	return CPUStat{
		User:   s.User - o.User,
		System: s.System - o.System,
		Idle:   s.Idle - o.Idle,
		Steal:  s.Steal - o.Steal,
	}
}

// SelfUsage reads this process's consumed CPU time.
func SelfUsage() common.Timing {
	var self unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &self); err != nil {
		env.Fatal("Can't getrusage(self)", err)
	}
	return common.Timing{
		Wall: common.Time(float64(time.Now().UnixNano()) / 1e9),
		User: common.Timeval(self.Utime),
		Sys:  common.Timeval(self.Stime),
	}
}

const (
	// Fraction of machine CPU time consumed by other processes above which a
	// run is flagged as contended.
	userInterferenceThreshold = 0.01
	sysInterferenceThreshold  = 0.02
)

// Interference compares the machine's CPU consumption over a run against this
// process's own and reports anything that may have skewed the measurement.
// Empty result means a quiet host.
func Interference(machine CPUStat, self common.Timing) []string {
	var notes []string

	if machine.Steal > 0 {
		notes = append(notes, "CPU time was stolen by the hypervisor")
	}

	du := machine.User - self.User.Seconds()
	if machine.User > 0 && du/machine.User > userInterferenceThreshold {
		notes = append(notes, "other processes consumed user CPU time during the run")
	}
	ds := machine.System - self.Sys.Seconds()
	if machine.System > 0 && ds/machine.System > sysInterferenceThreshold {
		notes = append(notes, "other processes consumed system CPU time during the run")
	}
	return notes
}
