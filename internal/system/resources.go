package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Resources is a snapshot of what the host can spend on decoding.
type Resources struct {
	LogicalCPUs    int
	AvailableBytes uint64
}

// Probe reads the host through gopsutil; it is a variable so tests can pin
// the numbers.
var Probe = func() Resources {
	r := Resources{LogicalCPUs: runtime.NumCPU()}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		r.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		r.AvailableBytes = vm.Available
	}
	return r
}

// RecommendedWorkers bounds parallel decoding by CPU count and by how many
// decode buffers of four plates each fit in available memory. Never below 1.
func RecommendedWorkers(width, height int) int {
	return workersFor(Probe(), width, height)
}

func workersFor(r Resources, width, height int) int {
	n := r.LogicalCPUs
	plate := uint64(width) * uint64(height) * 4
	if plate > 0 && r.AvailableBytes > 0 {
		if byMem := int(r.AvailableBytes / (4 * plate)); byMem < n {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}
