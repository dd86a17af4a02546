package partition

import (
	"github.com/gautham-bhat-k/meadowlark/config"
)

// Placement is an immutable partition <-> node table built from one cluster
// version. It is safe to share between goroutines.
type Placement struct {
	layout         config.Layout
	partition2node [][]config.NodeID
	node2partition [][]config.PartitionID
}

func (p *Placement) Version() uint64           { return p.layout.Version }
func (p *Placement) PartitionCount() uint64    { return p.layout.PartitionCount }
func (p *Placement) NodeCount() uint64         { return p.layout.NodeCount }
func (p *Placement) ReplicationFactor() uint64 { return p.layout.ReplicationFactor }

// Nodes returns a copy of partition pid's replica list, primary first.
func (p *Placement) Nodes(pid config.PartitionID) ([]config.NodeID, bool) {
	if uint64(pid) >= uint64(len(p.partition2node)) {
		return nil, false
	}
	return append([]config.NodeID(nil), p.partition2node[pid]...), true
}

// Partitions returns a copy of the partitions node n hosts at any rank.
func (p *Placement) Partitions(n config.NodeID) ([]config.PartitionID, bool) {
	if uint64(n) >= uint64(len(p.node2partition)) {
		return nil, false
	}
	return append([]config.PartitionID(nil), p.node2partition[n]...), true
}
