package config

import "strconv"

func (c *Cluster) SetShelfBase(base string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shelfBase = base
}

func (c *Cluster) SetShelfUser(user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shelfUser = user
}

func (c *Cluster) GetShelfBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shelfBase
}

func (c *Cluster) GetShelfUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shelfUser
}

func (c *Cluster) GetShelfBaseForPartition(pid PartitionID) string {
	return c.GetShelfBase() + "/" + strconv.FormatUint(uint64(pid), 10)
}

func (c *Cluster) GetShelfUserForPartition(pid PartitionID) string {
	return c.GetShelfUser() + "_" + strconv.FormatUint(uint64(pid), 10)
}
