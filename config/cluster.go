// Package config holds the cluster description: counts, replication scheme,
// the partition registry (per-partition attributes, including the durable root)
// and the server registry. It does no placement work.
//
// All methods are safe for concurrent use. Mutations take the exclusive lock
// and bump Version; placement built against an older version is stale.
package config

import (
	"net"
	"strconv"
	"sync"

	"github.com/gautham-bhat-k/meadowlark/replication"
)

type (
	PartitionID uint64
	NodeID      uint64
	ServerID    uint64
)

// Attrs are the string attributes of a partition.
type Attrs map[string]string

// AttrRoot is the partition attribute that stores the durable root token.
const AttrRoot = "root"

const DefaultMaxKeyLen = 40

// Location is a reachable backend server process.
type Location struct {
	Addr string
	Port uint64
}

func (l Location) String() string {
	return net.JoinHostPort(l.Addr, strconv.FormatUint(l.Port, 10))
}

// RootRecorder durably stores a partition's root token. UpdateRoot calls it
// before the in-memory registry changes.
type RootRecorder interface {
	RecordRoot(pid PartitionID, root string) error
}

type Cluster struct {
	mu sync.RWMutex

	shelfBase string
	shelfUser string

	partitionCnt uint64
	serverCnt    uint64
	nodeCnt      uint64
	startingPort uint64

	kvsType      string
	kvsSize      uint64
	cacheSize    uint64
	serverThread uint64
	maxKeyLen    uint64

	scheme          replication.Scheme
	requestedFactor uint64
	factor          uint64
	factorFor       factorInputs
	factorSet       bool

	partitions map[PartitionID]Attrs
	servers    map[ServerID]Location

	version  uint64
	recorder RootRecorder
}

// New returns an empty cluster description with no replication.
func New() *Cluster {
	return &Cluster{
		scheme:          replication.None,
		requestedFactor: 1,
		maxKeyLen:       DefaultMaxKeyLen,
		partitions:      make(map[PartitionID]Attrs),
		servers:         make(map[ServerID]Location),
	}
}

// Version increases on every change that invalidates placement.
func (c *Cluster) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Cluster) SetRootRecorder(r RootRecorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// setCount updates a placement-relevant field. Caller holds c.mu.
func (c *Cluster) setCount(field *uint64, v uint64) {
	if *field == v {
		return
	}
	*field = v
	c.version++
}

func (c *Cluster) SetPartitionCount(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCount(&c.partitionCnt, n)
}

func (c *Cluster) SetServerCount(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCount(&c.serverCnt, n)
}

func (c *Cluster) SetNodeCount(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCount(&c.nodeCnt, n)
}

func (c *Cluster) SetReplicationScheme(s replication.Scheme) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scheme == s {
		return
	}
	c.scheme = s
	c.version++
}

func (c *Cluster) GetPartitionCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.partitionCnt
}

func (c *Cluster) GetServerCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverCnt
}

func (c *Cluster) GetNodeCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeCnt
}

func (c *Cluster) GetReplicationScheme() replication.Scheme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scheme
}

// Backend tuning. These are opaque to placement and do not bump Version.

func (c *Cluster) SetStartingPort(p uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startingPort = p
}

func (c *Cluster) GetStartingPort() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startingPort
}

func (c *Cluster) SetKVSType(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kvsType = t
}

func (c *Cluster) GetKVSType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kvsType
}

func (c *Cluster) SetKVSSize(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kvsSize = n
}

func (c *Cluster) GetKVSSize() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kvsSize
}

func (c *Cluster) SetCacheSize(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheSize = n
}

func (c *Cluster) GetCacheSize() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cacheSize
}

func (c *Cluster) SetServerThread(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverThread = n
}

// GetServerThread returns the configured worker count per server.
func (c *Cluster) GetServerThread() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverThread
}

func (c *Cluster) SetMaxKeyLen(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxKeyLen = n
}

func (c *Cluster) GetMaxKeyLen() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxKeyLen
}
