// Package kvs is the routing client: it resolves a key to the node that owns
// its partition and dispatches the request over a pooled backend handle.
package kvs

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/gautham-bhat-k/meadowlark/backend"
	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/errs"
	"github.com/gautham-bhat-k/meadowlark/partition"
	"github.com/gautham-bhat-k/meadowlark/utils"
)

// Client is safe for concurrent use.
type Client struct {
	ID string

	cfg  *config.Cluster
	pm   *partition.Manager
	pool *pool
}

// New builds a client over cfg. Placement is computed on first use.
func New(cfg *config.Cluster, opener backend.Opener) *Client {
	return &Client{
		ID:   uuid.New().String(),
		cfg:  cfg,
		pm:   partition.NewManager(cfg),
		pool: newPool(opener),
	}
}

// Init loads configFile, derives its placement and returns a ready client.
func Init(configFile string, opener backend.Opener) (*Client, error) {
	cfg, err := config.LoadConfigFile(configFile)
	if err != nil {
		return nil, err
	}
	c := New(cfg, opener)
	if err := c.pm.Init(); err != nil {
		return nil, err
	}
	log.Printf("[INFO] kvs client %s ready: %d partitions over %d nodes", c.ID, cfg.GetPartitionCount(), cfg.GetNodeCount())
	return c, nil
}

func (c *Client) Config() *config.Cluster     { return c.cfg }
func (c *Client) Manager() *partition.Manager { return c.pm }

// MaxKeyLen is the longest key accepted.
func (c *Client) MaxKeyLen() uint64 { return c.cfg.GetMaxKeyLen() }

func (c *Client) checkKey(op string, key []byte) error {
	if limit := c.MaxKeyLen(); len(key) == 0 || uint64(len(key)) > limit {
		return errors.Wrapf(errs.ErrInvalidKey, "%s: key length %d outside [1, %d]", op, len(key), limit)
	}
	return nil
}

// PartitionOf maps key to its partition.
func (c *Client) PartitionOf(key []byte) config.PartitionID {
	return config.PartitionID(utils.KeyPartition(key, c.cfg.GetPartitionCount()))
}

// PickServer resolves key to the location of its partition's primary node.
func (c *Client) PickServer(key []byte) (config.Location, error) {
	if err := c.pm.Refresh(); err != nil {
		return config.Location{}, err
	}
	n, err := c.pm.FindNode(c.PartitionOf(key))
	if err != nil {
		return config.Location{}, err
	}
	return c.cfg.NodeLocation(n)
}

// Replicas resolves key to every replica location, primary first. Callers
// retrying a transient failure may walk this list.
func (c *Client) Replicas(key []byte) ([]config.Location, error) {
	if err := c.pm.Refresh(); err != nil {
		return nil, err
	}
	nodes, err := c.pm.FindNodes(c.PartitionOf(key))
	if err != nil {
		return nil, err
	}
	out := make([]config.Location, 0, len(nodes))
	for _, n := range nodes {
		loc, err := c.cfg.NodeLocation(n)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

func (c *Client) handleFor(ctx context.Context, op string, key []byte) (config.Location, backend.Handle, error) {
	if err := c.checkKey(op, key); err != nil {
		return config.Location{}, nil, err
	}
	loc, err := c.PickServer(key)
	if err != nil {
		return config.Location{}, nil, errors.Wrapf(err, "%s", op)
	}
	h, err := c.pool.getOrOpen(ctx, loc)
	if err != nil {
		if errors.Is(err, errs.ErrBackendUnavailable) {
			return loc, nil, errors.Wrapf(err, "%s", op)
		}
		return loc, nil, errors.Wrapf(errs.ErrBackendUnavailable, "%s %s: %v", op, loc, err)
	}
	return loc, h, nil
}

// release drops the pooled handle when its connection broke.
func (c *Client) release(loc config.Location, h backend.Handle, err error) {
	if errors.Is(err, backend.ErrConnBroken) {
		c.pool.invalidate(loc, h)
	}
}

// Put stores value under key and returns the value it replaced, if any.
func (c *Client) Put(ctx context.Context, key, value []byte) (prev []byte, replaced bool, err error) {
	defer func() { observe("put", err, true) }()
	loc, h, err := c.handleFor(ctx, "put", key)
	if err != nil {
		return nil, false, err
	}
	prev, replaced, err = h.Put(ctx, key, value)
	c.release(loc, h, err)
	return prev, replaced, err
}

// Get returns key's value. A missing key is found == false with a nil error.
func (c *Client) Get(ctx context.Context, key []byte) (value []byte, found bool, err error) {
	defer func() { observe("get", err, found) }()
	loc, h, err := c.handleFor(ctx, "get", key)
	if err != nil {
		return nil, false, err
	}
	value, found, err = h.Get(ctx, key)
	c.release(loc, h, err)
	return value, found, err
}

func (c *Client) Del(ctx context.Context, key []byte) (existed bool, err error) {
	defer func() { observe("del", err, existed) }()
	loc, h, err := c.handleFor(ctx, "del", key)
	if err != nil {
		return false, err
	}
	existed, err = h.Del(ctx, key)
	c.release(loc, h, err)
	return existed, err
}

// WipeServers drops every key on every node of the cluster.
func (c *Client) WipeServers(ctx context.Context) error {
	if err := c.pm.Refresh(); err != nil {
		return err
	}
	seen := make(map[config.Location]bool)
	for n := uint64(0); n < c.cfg.GetNodeCount(); n++ {
		loc, err := c.cfg.NodeLocation(config.NodeID(n))
		if err != nil {
			return errors.Wrap(err, "wipe servers")
		}
		if seen[loc] {
			continue
		}
		seen[loc] = true

		h, err := c.pool.getOrOpen(ctx, loc)
		if err != nil {
			return errors.Wrapf(errs.ErrBackendUnavailable, "wipe servers: %s: %v", loc, err)
		}
		if err := h.Wipe(ctx); err != nil {
			c.release(loc, h, err)
			return errors.Wrap(err, "wipe servers")
		}
	}
	log.Printf("[INFO] kvs client %s wiped %d backends", c.ID, len(seen))
	return nil
}

// Final closes every pooled handle. The client may be used again afterwards.
func (c *Client) Final() {
	n := c.pool.closeAll()
	log.Printf("[INFO] kvs client %s closed %d backend handles", c.ID, n)
}

// PrintCluster writes the cluster description, placement and open handles.
func (c *Client) PrintCluster(w io.Writer) {
	c.cfg.Print(w)
	c.pm.Print(w)

	locs := c.pool.locations()
	slices.SortFunc(locs, func(a, b config.Location) int { return strings.Compare(a.String(), b.String()) })
	fmt.Fprintf(w, "Open backends: %d\n", len(locs))
	for _, loc := range locs {
		fmt.Fprintf(w, "  %s\n", loc)
	}
}
