package config

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"
)

// Print writes a human readable summary of the description.
func (c *Cluster) Print(w io.Writer) {
	fc := c.toFile()
	factor, current := c.GetReplicationFactor()

	fmt.Fprintln(w, "---------------")
	fmt.Fprintf(w, "Shelf Base: %s | Shelf User: %s\n", fc.ShelfBase, fc.ShelfUser)
	fmt.Fprintf(w, "Partitions: %d | Nodes: %d | Servers: %d | Starting Port: %d\n",
		fc.PartitionCnt, fc.NodeCnt, fc.ServerCnt, fc.StartingPort)
	fmt.Fprintf(w, "KVS Type: %s | KVS Size: %d | Cache Size: %d | Server Thread: %d | Max Key Len: %d\n",
		fc.KVSType, fc.KVSSize, fc.CacheSize, fc.ServerThread, fc.MaxKeyLen)
	fmt.Fprintf(w, "Replication: %s | Requested: %d | Factor: %d (current: %v) | Version: %d\n",
		fc.ReplicationScheme, fc.ReplicationFactor, factor, current, c.Version())
	fmt.Fprintln(w, "--- Servers ---")
	for _, s := range fc.Servers {
		fmt.Fprintf(w, "  ServerID: %d | Addr: %s | Port: %d\n", s.ID, s.Addr, s.Port)
	}
	fmt.Fprintln(w, "--- Partitions ---")
	for _, p := range fc.Partitions {
		keys := make([]string, 0, len(p.Attrs))
		for k := range p.Attrs {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, k+"="+p.Attrs[k])
		}
		fmt.Fprintf(w, "  PartitionID: %d | %s\n", p.ID, strings.Join(kv, " "))
	}
	fmt.Fprintln(w, "---------------")
}
