package config

import (
	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/errs"
	"github.com/gautham-bhat-k/meadowlark/replication"
)

// Layout is the part of the description placement is computed from.
type Layout struct {
	Scheme            replication.Scheme
	PartitionCount    uint64
	NodeCount         uint64
	ReplicationFactor uint64
	Version           uint64
}

// Validate cross-checks the derived factor against the current scheme and
// counts, and the registries against the counts.
func (c *Cluster) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validateLocked()
}

func (c *Cluster) IsValid() bool {
	return c.Validate() == nil
}

func (c *Cluster) validateLocked() error {
	if !c.factorCurrentLocked() {
		return errors.Wrapf(errs.ErrConfig, "replication factor not derived for scheme %s with partitions %d, nodes %d, servers %d",
			c.scheme, c.partitionCnt, c.nodeCnt, c.serverCnt)
	}
	if c.factor == 0 {
		return errors.Wrapf(errs.ErrConfig, "replication factor is 0")
	}
	if c.partitionCnt == 0 || c.nodeCnt == 0 {
		return errors.Wrapf(errs.ErrConfig, "partitionCount(%d) and nodeCount(%d) must be > 0", c.partitionCnt, c.nodeCnt)
	}
	if c.factor > c.nodeCnt {
		return errors.Wrapf(errs.ErrConfig, "replicationFactor(%d) > nodeCount(%d)", c.factor, c.nodeCnt)
	}
	if uint64(len(c.servers)) > c.serverCnt {
		return errors.Wrapf(errs.ErrConfig, "%d servers registered, serverCount is %d", len(c.servers), c.serverCnt)
	}
	for sid := range c.servers {
		if uint64(sid) >= c.serverCnt {
			return errors.Wrapf(errs.ErrConfig, "server %d outside [0, %d)", sid, c.serverCnt)
		}
	}
	for pid := range c.partitions {
		if uint64(pid) >= c.partitionCnt {
			return errors.Wrapf(errs.ErrConfig, "partition %d outside [0, %d)", pid, c.partitionCnt)
		}
	}
	return nil
}

// Layout validates the description and returns the placement inputs, read
// under one lock so they are mutually consistent.
func (c *Cluster) Layout() (Layout, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.validateLocked(); err != nil {
		return Layout{}, err
	}
	return Layout{
		Scheme:            c.scheme,
		PartitionCount:    c.partitionCnt,
		NodeCount:         c.nodeCnt,
		ReplicationFactor: c.factor,
		Version:           c.version,
	}, nil
}
