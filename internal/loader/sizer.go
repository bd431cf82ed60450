package loader

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/shirou/gopsutil/v4/mem"
)

// BatchSizer picks a batch size from the memory currently available and the
// number of records to load.
type BatchSizer func(availableMemory uint64, recordCount int) int

// MemoryProbe reports available system memory in bytes.
type MemoryProbe func(ctx context.Context) (uint64, error)

// MemoryBatchSizer sizes batches to use at most half of available memory at
// rowBytes per record, bounded below by minSize and above by the record count.
func MemoryBatchSizer(minSize, rowBytes int) BatchSizer {
	return func(available uint64, n int) int {
		size := n
		if rowBytes > 0 {
			byMem := available / uint64(rowBytes) / 2
			if byMem < uint64(size) {
				size = int(byMem)
			}
		}
		return max(minSize, size)
	}
}

// SystemMemory reads available memory from the host.
func SystemMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "loader: read available memory")
	}
	return vm.Available, nil
}
