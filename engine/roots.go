package engine

import (
	"fmt"
	"strconv"

	"github.com/gautham-bhat-k/meadowlark/config"
)

const partitionRootsHash = "root"

// RecordRoot durably stores root as pid's recovery handle. It implements
// config.RootRecorder.
func (e *Engine) RecordRoot(pid config.PartitionID, root string) error {
	return e.HSet(partitionRootsHash, strconv.FormatUint(uint64(pid), 10), root)
}

// Roots returns every recorded partition root.
func (e *Engine) Roots() (map[config.PartitionID]string, error) {
	out := make(map[config.PartitionID]string)
	err := e.HScan(partitionRootsHash, func(field, value string) error {
		pid, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return fmt.Errorf("bad root record %q: %w", field, err)
		}
		out[config.PartitionID(pid)] = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
