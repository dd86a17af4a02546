package config

import (
	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/errs"
)

func (c *Cluster) AddServer(sid ServerID, loc Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.servers[sid]; exists {
		return errors.Wrapf(errs.ErrDuplicateKey, "AddServer: server %d already registered", sid)
	}
	if loc.Addr == "" {
		return errors.Wrapf(errs.ErrConfig, "AddServer: server %d has no address", sid)
	}
	c.servers[sid] = loc
	c.version++
	return nil
}

func (c *Cluster) RemoveServer(sid ServerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.servers[sid]; !exists {
		return errors.Wrapf(errs.ErrNotFound, "RemoveServer: server %d", sid)
	}
	delete(c.servers, sid)
	c.version++
	return nil
}

// GetServers returns a copy of the server registry.
func (c *Cluster) GetServers() map[ServerID]Location {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[ServerID]Location, len(c.servers))
	for sid, loc := range c.servers {
		out[sid] = loc
	}
	return out
}

// ServerForNode returns the server that hosts node n: n mod serverCount.
func (c *Cluster) ServerForNode(n NodeID) (ServerID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverForNodeLocked(n)
}

func (c *Cluster) serverForNodeLocked(n NodeID) (ServerID, error) {
	if c.serverCnt == 0 {
		return 0, errors.Wrapf(errs.ErrNoServerForNode, "node %d: serverCount is 0", n)
	}
	return ServerID(uint64(n) % c.serverCnt), nil
}

// NodeLocation resolves node n to the location it listens on. Nodes sharing a
// server take consecutive ports from the server's base port, which defaults to
// StartingPort when the registry entry has none.
func (c *Cluster) NodeLocation(n NodeID) (Location, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sid, err := c.serverForNodeLocked(n)
	if err != nil {
		return Location{}, err
	}
	srv, ok := c.servers[sid]
	if !ok {
		return Location{}, errors.Wrapf(errs.ErrNoServerForNode, "node %d: server %d not registered", n, sid)
	}
	base := srv.Port
	if base == 0 {
		base = c.startingPort
	}
	return Location{Addr: srv.Addr, Port: base + uint64(n)/c.serverCnt}, nil
}
