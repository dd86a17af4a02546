// Package partition owns the derived placement: partition -> ordered replica
// nodes and its inverse node -> partitions.
//
// The placement is rebuilt by Init into a fresh table and published with an
// atomic pointer swap, so readers never see a half-built table and take no
// lock. A placement is only served while the cluster description is at the
// version it was built from; after any count, scheme or registry change the
// manager reports ErrNotReady until Init runs again.
package partition

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/errs"
	"github.com/gautham-bhat-k/meadowlark/ring"
)

// PartitionInfo is a hosted partition and a copy of its attributes.
type PartitionInfo struct {
	ID    config.PartitionID
	Attrs config.Attrs
}

type Manager struct {
	cfg     *config.Cluster
	current atomic.Pointer[Placement]
	initMu  sync.Mutex
}

func NewManager(cfg *config.Cluster) *Manager {
	return &Manager{cfg: cfg}
}

// Init validates the cluster description and recomputes placement.
func (m *Manager) Init() error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	layout, err := m.cfg.Layout()
	if err != nil {
		return errors.Wrap(err, "partition manager init")
	}
	assignment, err := ring.Assign(layout.PartitionCount, layout.NodeCount, layout.ReplicationFactor)
	if err != nil {
		return errors.Wrap(err, "partition manager init")
	}

	p := &Placement{
		layout:         layout,
		partition2node: make([][]config.NodeID, len(assignment)),
		node2partition: make([][]config.PartitionID, layout.NodeCount),
	}
	for pid, replicas := range assignment {
		nodes := make([]config.NodeID, len(replicas))
		for i, n := range replicas {
			nodes[i] = config.NodeID(n)
		}
		p.partition2node[pid] = nodes
	}
	for n, hosted := range ring.Invert(assignment, layout.NodeCount) {
		pids := make([]config.PartitionID, len(hosted))
		for i, pid := range hosted {
			pids[i] = config.PartitionID(pid)
		}
		p.node2partition[n] = pids
	}

	m.current.Store(p)
	log.Printf("[INFO] placement built: version %d, scheme %s, %d partitions x %d replicas over %d nodes",
		layout.Version, layout.Scheme, layout.PartitionCount, layout.ReplicationFactor, layout.NodeCount)
	return nil
}

// Refresh runs Init only when the published placement is missing or stale.
func (m *Manager) Refresh() error {
	if m.Ready() {
		return nil
	}
	return m.Init()
}

// Ready reports whether queries will be answered.
func (m *Manager) Ready() bool {
	p := m.current.Load()
	return p != nil && p.Version() == m.cfg.Version()
}

// Placement returns the current placement table.
func (m *Manager) Placement() (*Placement, error) {
	return m.load("Placement")
}

func (m *Manager) load(op string) (*Placement, error) {
	p := m.current.Load()
	if p == nil {
		return nil, errors.Wrapf(errs.ErrNotReady, "%s: Init has not run", op)
	}
	if v := m.cfg.Version(); p.Version() != v {
		return nil, errors.Wrapf(errs.ErrNotReady, "%s: placement built at version %d, cluster is at %d", op, p.Version(), v)
	}
	return p, nil
}

// FindNode returns the primary node of partition pid.
func (m *Manager) FindNode(pid config.PartitionID) (config.NodeID, error) {
	p, err := m.load("FindNode")
	if err != nil {
		return 0, err
	}
	if uint64(pid) >= p.PartitionCount() {
		return 0, errors.Wrapf(errs.ErrNotFound, "FindNode: partition %d outside [0, %d)", pid, p.PartitionCount())
	}
	return p.partition2node[pid][0], nil
}

// FindNodes returns the ordered replica list of partition pid.
func (m *Manager) FindNodes(pid config.PartitionID) ([]config.NodeID, error) {
	p, err := m.load("FindNodes")
	if err != nil {
		return nil, err
	}
	nodes, ok := p.Nodes(pid)
	if !ok {
		return nil, errors.Wrapf(errs.ErrNotFound, "FindNodes: partition %d outside [0, %d)", pid, p.PartitionCount())
	}
	return nodes, nil
}

// FindPartitionsByNode returns every partition node n hosts, at any replica
// rank, in ascending id order, with a copy of each partition's attributes.
func (m *Manager) FindPartitionsByNode(n config.NodeID) ([]PartitionInfo, error) {
	p, err := m.load("FindPartitionsByNode")
	if err != nil {
		return nil, err
	}
	pids, ok := p.Partitions(n)
	if !ok {
		return nil, errors.Wrapf(errs.ErrNotFound, "FindPartitionsByNode: node %d outside [0, %d)", n, p.NodeCount())
	}
	out := make([]PartitionInfo, 0, len(pids))
	for _, pid := range pids {
		attrs, ok := m.cfg.PartitionAttrs(pid)
		if !ok {
			attrs = config.Attrs{}
		}
		out = append(out, PartitionInfo{ID: pid, Attrs: attrs})
	}
	return out, nil
}

// Print writes both placement tables to w.
func (m *Manager) Print(w io.Writer) {
	p, err := m.load("Print")
	if err != nil {
		fmt.Fprintf(w, "placement: %v\n", err)
		return
	}
	fmt.Fprintln(w, "--- Partition -> Nodes ---")
	for pid, nodes := range p.partition2node {
		fmt.Fprintf(w, "  Partition %d: %v\n", pid, nodes)
	}
	fmt.Fprintln(w, "--- Node -> Partitions ---")
	for n, pids := range p.node2partition {
		fmt.Fprintf(w, "  Node %d: %v\n", n, pids)
	}
}
