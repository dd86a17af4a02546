package config

import (
	"log"

	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/errs"
)

func copyAttrs(a Attrs) Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// AddPartition registers pid with a copy of attrs.
func (c *Cluster) AddPartition(pid PartitionID, attrs Attrs) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.partitions[pid]; exists {
		return errors.Wrapf(errs.ErrDuplicateKey, "AddPartition: partition %d already registered", pid)
	}
	c.partitions[pid] = copyAttrs(attrs)
	c.version++
	return nil
}

func (c *Cluster) RemovePartition(pid PartitionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.partitions[pid]; !exists {
		return errors.Wrapf(errs.ErrNotFound, "RemovePartition: partition %d", pid)
	}
	delete(c.partitions, pid)
	c.version++
	return nil
}

// UpdateRoot records root as the durable root token of pid, registering the
// partition if needed. pid must be below the partition count. The recorder (if
// any) is written first; when it fails the registry is unchanged. Callers must
// have made the index mutation durable before calling. Only the latest root is
// kept.
func (c *Cluster) UpdateRoot(pid PartitionID, root string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if uint64(pid) >= c.partitionCnt {
		return errors.Wrapf(errs.ErrNotFound, "UpdateRoot: partition %d outside [0, %d)", pid, c.partitionCnt)
	}
	if c.recorder != nil {
		if err := c.recorder.RecordRoot(pid, root); err != nil {
			return errors.Wrapf(err, "UpdateRoot: partition %d", pid)
		}
	}
	attrs, ok := c.partitions[pid]
	if !ok {
		attrs = Attrs{}
		c.partitions[pid] = attrs
	}
	attrs[AttrRoot] = root
	log.Printf("[INFO] partition %d root -> %s", pid, root)
	return nil
}

// GetPartitions returns a copy of the partition registry.
func (c *Cluster) GetPartitions() map[PartitionID]Attrs {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[PartitionID]Attrs, len(c.partitions))
	for pid, attrs := range c.partitions {
		out[pid] = copyAttrs(attrs)
	}
	return out
}

// PartitionAttrs returns a copy of pid's attributes.
func (c *Cluster) PartitionAttrs(pid PartitionID) (Attrs, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	attrs, ok := c.partitions[pid]
	if !ok {
		return nil, false
	}
	return copyAttrs(attrs), true
}
