package partition

import (
	"bytes"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/errs"
	"github.com/gautham-bhat-k/meadowlark/replication"
	"github.com/gautham-bhat-k/meadowlark/ring"
)

func newCluster(t *testing.T, scheme replication.Scheme, partitions, nodes, servers, requested uint64) *config.Cluster {
	t.Helper()
	c := config.New()
	c.SetPartitionCount(partitions)
	c.SetNodeCount(nodes)
	c.SetServerCount(servers)
	c.SetReplicationScheme(scheme)
	require.NoError(t, c.DeriveReplicationFactor(requested))
	return c
}

func newManager(t *testing.T, scheme replication.Scheme, partitions, nodes, servers, requested uint64) (*Manager, *config.Cluster) {
	t.Helper()
	c := newCluster(t, scheme, partitions, nodes, servers, requested)
	m := NewManager(c)
	require.NoError(t, m.Init())
	return m, c
}

func TestNoReplicationIsIdentity(t *testing.T) {
	m, _ := newManager(t, replication.None, 4, 4, 1, 1)
	for p := config.PartitionID(0); p < 4; p++ {
		nodes, err := m.FindNodes(p)
		require.NoError(t, err)
		assert.Equal(t, []config.NodeID{config.NodeID(p)}, nodes)

		hosted, err := m.FindPartitionsByNode(config.NodeID(p))
		require.NoError(t, err)
		require.Len(t, hosted, 1)
		assert.Equal(t, p, hosted[0].ID)
	}
}

func TestMasterSlaveTwoPartitionsFourNodes(t *testing.T) {
	m, c := newManager(t, replication.MasterSlave, 2, 4, 2, 1)
	factor, _ := c.GetReplicationFactor()
	assert.Equal(t, uint64(2), factor)

	primary, err := m.FindNode(0)
	require.NoError(t, err)
	assert.Equal(t, config.NodeID(0), primary)
	primary, err = m.FindNode(1)
	require.NoError(t, err)
	assert.Equal(t, config.NodeID(1), primary)

	for n := config.NodeID(0); n < 4; n++ {
		hosted, err := m.FindPartitionsByNode(n)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(hosted), 2)
	}
}

func TestPlacementProperties(t *testing.T) {
	tests := []struct {
		scheme                                replication.Scheme
		partitions, nodes, servers, requested uint64
	}{
		{replication.None, 7, 3, 1, 1},
		{replication.MasterSlave, 3, 7, 3, 1},
		{replication.MasterSlave, 4, 16, 4, 4},
		{replication.Dynamo, 3, 5, 3, 3},
		{replication.Dynamo, 16, 6, 3, 3},
		{replication.ModC, 10, 4, 4, 4},
		{replication.ModC, 1, 9, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.scheme.String(), func(t *testing.T) {
			m, c := newManager(t, tt.scheme, tt.partitions, tt.nodes, tt.servers, tt.requested)
			factor, _ := c.GetReplicationFactor()

			hostedBy := map[config.NodeID][]config.PartitionID{}
			for n := config.NodeID(0); uint64(n) < tt.nodes; n++ {
				hosted, err := m.FindPartitionsByNode(n)
				require.NoError(t, err)
				assert.LessOrEqual(t, uint64(len(hosted)), ring.Bound(tt.partitions, tt.nodes, factor))
				for _, info := range hosted {
					hostedBy[n] = append(hostedBy[n], info.ID)
				}
			}

			for p := config.PartitionID(0); uint64(p) < tt.partitions; p++ {
				nodes, err := m.FindNodes(p)
				require.NoError(t, err)
				require.Len(t, nodes, int(factor))
				primary, err := m.FindNode(p)
				require.NoError(t, err)
				assert.Equal(t, primary, nodes[0])

				for n := config.NodeID(0); uint64(n) < tt.nodes; n++ {
					assert.Equal(t, slices.Contains(nodes, n), slices.Contains(hostedBy[n], p),
						"partition %d node %d", p, n)
				}
			}
		})
	}
}

func TestQueriesBeforeInit(t *testing.T) {
	c := newCluster(t, replication.None, 2, 2, 1, 1)
	m := NewManager(c)
	assert.False(t, m.Ready())

	_, err := m.FindNode(0)
	assert.True(t, errors.Is(err, errs.ErrNotReady))
	_, err = m.FindNodes(0)
	assert.True(t, errors.Is(err, errs.ErrNotReady))
	_, err = m.FindPartitionsByNode(0)
	assert.True(t, errors.Is(err, errs.ErrNotReady))
	_, err = m.Placement()
	assert.True(t, errors.Is(err, errs.ErrNotReady))
}

func TestInitRequiresValidConfig(t *testing.T) {
	c := config.New()
	c.SetPartitionCount(4)
	c.SetNodeCount(4)
	m := NewManager(c)

	err := m.Init()
	assert.True(t, errors.Is(err, errs.ErrConfig))
	assert.False(t, m.Ready())
}

func TestOutOfRange(t *testing.T) {
	m, _ := newManager(t, replication.Dynamo, 4, 3, 2, 2)

	_, err := m.FindNode(4)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Contains(t, err.Error(), "partition 4")
	_, err = m.FindNodes(100)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = m.FindPartitionsByNode(3)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Contains(t, err.Error(), "node 3")
}

func TestClusterChangeInvalidatesPlacement(t *testing.T) {
	m, c := newManager(t, replication.Dynamo, 4, 4, 2, 2)
	require.True(t, m.Ready())

	require.NoError(t, c.AddPartition(1, config.Attrs{"tier": "hot"}))
	assert.False(t, m.Ready())
	_, err := m.FindNodes(1)
	assert.True(t, errors.Is(err, errs.ErrNotReady))

	require.NoError(t, m.Refresh())
	assert.True(t, m.Ready())

	c.SetNodeCount(8)
	// factor is stale for the new counts, so Init is rejected until re-derived
	assert.True(t, errors.Is(m.Refresh(), errs.ErrConfig))
	require.NoError(t, c.DeriveReplicationFactor(2))
	require.NoError(t, m.Init())
	p, err := m.Placement()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), p.NodeCount())
}

func TestFindPartitionsByNodeAttrs(t *testing.T) {
	m, c := newManager(t, replication.None, 3, 3, 1, 1)
	require.NoError(t, c.UpdateRoot(2, "idx:kvs_2"))

	hosted, err := m.FindPartitionsByNode(2)
	require.NoError(t, err)
	require.Len(t, hosted, 1)
	assert.Equal(t, "idx:kvs_2", hosted[0].Attrs[config.AttrRoot])

	// callers get copies
	hosted[0].Attrs[config.AttrRoot] = "mutated"
	assert.Equal(t, "idx:kvs_2", c.GetPartitions()[2][config.AttrRoot])

	hosted, err = m.FindPartitionsByNode(0)
	require.NoError(t, err)
	assert.NotNil(t, hosted[0].Attrs)
	assert.Empty(t, hosted[0].Attrs)
}

func TestFindNodesReturnsCopy(t *testing.T) {
	m, _ := newManager(t, replication.Dynamo, 2, 3, 2, 2)
	nodes, err := m.FindNodes(0)
	require.NoError(t, err)
	nodes[0] = 99

	again, err := m.FindNodes(0)
	require.NoError(t, err)
	assert.Equal(t, config.NodeID(0), again[0])
}

func TestConcurrentReadsDuringInit(t *testing.T) {
	m, _ := newManager(t, replication.Dynamo, 64, 8, 4, 3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				nodes, err := m.FindNodes(config.PartitionID((i*j)%64))
				if assert.NoError(t, err) {
					assert.Len(t, nodes, 3)
				}
			}
		}(i)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, m.Init())
	}
	wg.Wait()
}

func TestPrint(t *testing.T) {
	m, _ := newManager(t, replication.MasterSlave, 2, 4, 2, 1)
	var buf bytes.Buffer
	m.Print(&buf)
	assert.Contains(t, buf.String(), "Partition 0: [0 2]")
	assert.Contains(t, buf.String(), "Node 3: [1]")

	buf.Reset()
	NewManager(config.New()).Print(&buf)
	assert.Contains(t, buf.String(), "Init has not run")
}
