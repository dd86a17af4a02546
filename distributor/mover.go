package distributor

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/backend"
	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/engine"
)

// Mover runs the transfers of a plan that originate on one node.
type Mover struct {
	Node   config.NodeID
	Cfg    *config.Cluster
	Eng    *engine.Engine
	Opener backend.Opener
}

// Execute copies every partition that plan sends from m.Node to its target
// node and returns the number of entries sent. Transfers from other nodes
// are left to those nodes.
func (m *Mover) Execute(ctx context.Context, plan []Transfer) (int, error) {
	total, moved := 0, 0
	for _, tr := range plan {
		if tr.From != m.Node {
			continue
		}
		n, err := m.transfer(ctx, tr)
		total += n
		if err != nil {
			return total, errors.Wrapf(err, "%s", tr)
		}
		moved++
	}
	log.Printf("[INFO] node %d moved %d partitions (%d entries)", m.Node, moved, total)
	return total, nil
}

func (m *Mover) transfer(ctx context.Context, tr Transfer) (int, error) {
	root := m.Cfg.GetShelfUserForPartition(tr.Partition)
	if attrs, ok := m.Cfg.PartitionAttrs(tr.Partition); ok && attrs[config.AttrRoot] != "" {
		root = attrs[config.AttrRoot]
	}
	ix, err := m.Eng.OpenIndex(root, int(m.Cfg.GetMaxKeyLen()))
	if err != nil {
		return 0, err
	}

	loc, err := m.Cfg.NodeLocation(tr.To)
	if err != nil {
		return 0, err
	}
	h, err := m.Opener.Open(ctx, loc)
	if err != nil {
		return 0, err
	}
	defer h.Close()

	log.Printf("[INFO] %s via %s", tr, loc)
	return Copy(ctx, ix, h)
}
