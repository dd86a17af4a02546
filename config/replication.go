package config

import (
	"log"

	"github.com/gautham-bhat-k/meadowlark/replication"
)

// factorInputs fingerprints what a derived factor was computed from.
type factorInputs struct {
	scheme replication.Scheme
	params replication.Params
}

func (c *Cluster) inputsLocked(requested uint64) factorInputs {
	return factorInputs{
		scheme: c.scheme,
		params: replication.Params{
			PartitionCount:  c.partitionCnt,
			NodeCount:       c.nodeCnt,
			ServerCount:     c.serverCnt,
			RequestedFactor: requested,
		},
	}
}

// DeriveReplicationFactor validates the current scheme and counts against
// requested and stores the effective factor. On failure the previously derived
// factor is left untouched.
func (c *Cluster) DeriveReplicationFactor(requested uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	in := c.inputsLocked(requested)
	factor, err := replication.Derive(in.scheme, in.params)
	if err != nil {
		return err
	}
	if !c.factorSet || c.factor != factor || c.factorFor != in {
		c.version++
	}
	c.requestedFactor = requested
	c.factor = factor
	c.factorFor = in
	c.factorSet = true
	log.Printf("[INFO] replication factor %d derived (scheme %s, partitions %d, nodes %d, servers %d, requested %d)",
		factor, in.scheme, in.params.PartitionCount, in.params.NodeCount, in.params.ServerCount, requested)
	return nil
}

// GetReplicationFactor returns the derived factor and whether it is current for
// the scheme and counts.
func (c *Cluster) GetReplicationFactor() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.factor, c.factorCurrentLocked()
}

func (c *Cluster) GetRequestedFactor() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requestedFactor
}

func (c *Cluster) factorCurrentLocked() bool {
	return c.factorSet && c.factorFor == c.inputsLocked(c.requestedFactor)
}
