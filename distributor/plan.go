// Package distributor moves partition data after a placement change.
package distributor

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/errs"
	"github.com/gautham-bhat-k/meadowlark/partition"
)

// Transfer copies one partition from a node that held it to a node that
// gained it.
type Transfer struct {
	Partition config.PartitionID
	From      config.NodeID
	To        config.NodeID
}

func (t Transfer) String() string {
	return fmt.Sprintf("partition %d: node %d -> node %d", t.Partition, t.From, t.To)
}

// Plan lists the copies needed to move from placement old to placement next.
// Every replica that next adds is fed from the partition's old primary. Both
// placements must agree on the partition count, since keys map to partitions
// by that count.
func Plan(old, next *partition.Placement) ([]Transfer, error) {
	if old.PartitionCount() != next.PartitionCount() {
		return nil, errors.Wrapf(errs.ErrConfig, "plan: partition count changed from %d to %d",
			old.PartitionCount(), next.PartitionCount())
	}

	var out []Transfer
	for pid := config.PartitionID(0); uint64(pid) < next.PartitionCount(); pid++ {
		was, _ := old.Nodes(pid)
		now, _ := next.Nodes(pid)
		for _, n := range now {
			if slices.Contains(was, n) {
				continue
			}
			out = append(out, Transfer{Partition: pid, From: was[0], To: n})
		}
	}
	return out, nil
}
