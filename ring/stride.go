// Package ring assigns partition replicas to nodes by walking the node ring.
//
// Rank j of every partition is placed at a fixed offset o_j from the primary
// (p mod nodes). Offsets advance by the stride partitions mod nodes, so the
// "extra" partitions of consecutive ranks land on consecutive ring segments;
// when the walk comes back to an offset already used it is bumped by one. This
// keeps the offsets distinct (no duplicate replica) and every node's load within
// ceil(partitions*factor/nodes).
package ring

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/gautham-bhat-k/meadowlark/errs"
)

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Offsets returns the ring offset of each replica rank.
func Offsets(partitions, nodes, factor uint64) []uint64 {
	stride := partitions % nodes
	period := nodes / gcd(stride, nodes)
	offsets := make([]uint64, factor)
	for j := uint64(0); j < factor; j++ {
		offsets[j] = (j*stride + j/period) % nodes
	}
	return offsets
}

// Assign returns the ordered replica nodes of every partition. Index 0 is the
// primary.
func Assign(partitions, nodes, factor uint64) ([][]uint64, error) {
	switch {
	case partitions == 0:
		return nil, errors.Wrap(errs.ErrConfig, "ring: partitionCount is 0")
	case nodes == 0:
		return nil, errors.Wrap(errs.ErrConfig, "ring: nodeCount is 0")
	case factor == 0:
		return nil, errors.Wrap(errs.ErrConfig, "ring: replicationFactor is 0")
	case factor > nodes:
		return nil, errors.Wrapf(errs.ErrConfig, "ring: replicationFactor(%d) > nodeCount(%d)", factor, nodes)
	}

	offsets := Offsets(partitions, nodes, factor)
	out := make([][]uint64, partitions)
	for p := uint64(0); p < partitions; p++ {
		replicas := make([]uint64, 0, factor)
		for _, o := range offsets {
			n := (p + o) % nodes
			for slices.Contains(replicas, n) {
				n = (n + 1) % nodes
			}
			replicas = append(replicas, n)
		}
		out[p] = replicas
	}
	return out, nil
}

// Bound is the most partitions any node may host.
func Bound(partitions, nodes, factor uint64) uint64 {
	if nodes == 0 {
		return 0
	}
	return (partitions*factor + nodes - 1) / nodes
}

// Invert builds node -> partitions from partition -> nodes. Each node's list is
// in ascending partition order.
func Invert(assignment [][]uint64, nodes uint64) [][]uint64 {
	out := make([][]uint64, nodes)
	for p, replicas := range assignment {
		for _, n := range replicas {
			out[n] = append(out[n], uint64(p))
		}
	}
	return out
}
