package engine

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/gautham-bhat-k/meadowlark/config"
)

const clusterMetadataKey = "config:cluster:metadata"

// SaveClusterMetadata stores the cluster description so a node can restart
// without its config file.
func (e *Engine) SaveClusterMetadata(c *config.Cluster) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	return e.Db.Set([]byte(clusterMetadataKey), buf.Bytes(), pebble.Sync)
}

// LoadClusterMetadata returns the stored description, or ErrKeyNotFound.
func (e *Engine) LoadClusterMetadata() (*config.Cluster, error) {
	data, err := e.Get(clusterMetadataKey)
	if err != nil {
		return nil, err
	}
	return config.Decode(strings.NewReader(data))
}
