// Package bench reads host and process CPU accounting so a run can report how
// much machine it consumed and whether anything else interfered with the
// measurement.
package bench

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aagor/tls-perf/env"
)

type MachineInfo struct {
	CPU_ModelName string
	CPU_MHz       float64
	CPU_Cores     int

	Mem_Bytes uint64
}

// ReadMachineInfo describes the benchmarking host. Failures leave the
// corresponding fields zero; the caller prints what it got.
func ReadMachineInfo() *MachineInfo {
	mi := &MachineInfo{}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		mi.CPU_ModelName = infos[0].ModelName
		mi.CPU_MHz = infos[0].Mhz
	} else if err != nil {
		env.Print("Could not read cpu info: ", err)
	}
	if n, err := cpu.Counts(true); err == nil {
		mi.CPU_Cores = n
	} else {
		env.Print("Could not count cpus: ", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		mi.Mem_Bytes = vm.Total
	} else {
		env.Print("Could not read memory info: ", err)
	}
	return mi
}

func (mi *MachineInfo) String() string {
	return fmt.Sprintf("%s (%d cores, %.0f MHz), %d MB RAM",
		mi.CPU_ModelName, mi.CPU_Cores, mi.CPU_MHz, mi.Mem_Bytes/(1024*1024))
}
