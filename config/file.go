package config

import (
	"cmp"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/gautham-bhat-k/meadowlark/errs"
	"github.com/gautham-bhat-k/meadowlark/replication"
	"github.com/gautham-bhat-k/meadowlark/utils"
)

type serverEntry struct {
	ID   uint64 `yaml:"id"`
	Addr string `yaml:"addr"`
	Port uint64 `yaml:"port,omitempty"`
}

// location accepts the port either in its own field or as "host:port".
func (s serverEntry) location() (Location, error) {
	if s.Port != 0 || !strings.Contains(s.Addr, ":") {
		return Location{Addr: s.Addr, Port: s.Port}, nil
	}
	host, port, err := utils.SplitAddr(s.Addr)
	if err != nil {
		return Location{}, errors.Wrapf(errs.ErrConfig, "server %d: %v", s.ID, err)
	}
	return Location{Addr: host, Port: port}, nil
}

type partitionEntry struct {
	ID    uint64            `yaml:"id"`
	Attrs map[string]string `yaml:"attrs,omitempty"`
}

// fileConfig is the on-disk shape of a cluster description.
type fileConfig struct {
	ShelfBase         string             `yaml:"shelf_base"`
	ShelfUser         string             `yaml:"shelf_user"`
	PartitionCnt      uint64             `yaml:"partition_cnt"`
	ServerCnt         uint64             `yaml:"server_cnt"`
	NodeCnt           uint64             `yaml:"node_cnt"`
	StartingPort      uint64             `yaml:"starting_port"`
	KVSType           string             `yaml:"kvs_type"`
	KVSSize           uint64             `yaml:"kvs_size"`
	CacheSize         uint64             `yaml:"cache_size"`
	ServerThread      uint64             `yaml:"server_thread,omitempty"`
	MaxKeyLen         uint64             `yaml:"max_key_len,omitempty"`
	ReplicationScheme replication.Scheme `yaml:"replication_scheme"`
	ReplicationFactor uint64             `yaml:"replication_factor,omitempty"`
	Servers           []serverEntry      `yaml:"servers"`
	Partitions        []partitionEntry   `yaml:"partitions"`
}

// Decode reads a YAML cluster description and derives its replication factor.
func Decode(r io.Reader) (*Cluster, error) {
	var fc fileConfig
	if err := yaml.NewDecoder(r).Decode(&fc); err != nil {
		return nil, errors.Wrapf(errs.ErrConfig, "decode cluster config: %v", err)
	}
	if fc.ReplicationScheme == replication.Invalid {
		return nil, errors.Wrapf(errs.ErrConfig, "replication_scheme missing or unknown")
	}

	c := New()
	c.shelfBase = fc.ShelfBase
	c.shelfUser = fc.ShelfUser
	c.partitionCnt = fc.PartitionCnt
	c.serverCnt = fc.ServerCnt
	c.nodeCnt = fc.NodeCnt
	c.startingPort = fc.StartingPort
	c.kvsType = fc.KVSType
	c.kvsSize = fc.KVSSize
	c.cacheSize = fc.CacheSize
	c.scheme = fc.ReplicationScheme
	c.serverThread = fc.ServerThread
	if c.serverThread == 0 {
		c.serverThread = defaultServerThread()
	}
	if fc.MaxKeyLen != 0 {
		c.maxKeyLen = fc.MaxKeyLen
	}
	for _, s := range fc.Servers {
		loc, err := s.location()
		if err != nil {
			return nil, err
		}
		if err := c.AddServer(ServerID(s.ID), loc); err != nil {
			return nil, err
		}
	}
	for _, p := range fc.Partitions {
		if err := c.AddPartition(PartitionID(p.ID), p.Attrs); err != nil {
			return nil, err
		}
	}

	requested := fc.ReplicationFactor
	if requested == 0 {
		requested = 1
	}
	if err := c.DeriveReplicationFactor(requested); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfigFile reads the cluster description at path.
func LoadConfigFile(path string) (*Cluster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrConfig, "open %s: %v", path, err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return c, nil
}

func (c *Cluster) toFile() fileConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fc := fileConfig{
		ShelfBase:         c.shelfBase,
		ShelfUser:         c.shelfUser,
		PartitionCnt:      c.partitionCnt,
		ServerCnt:         c.serverCnt,
		NodeCnt:           c.nodeCnt,
		StartingPort:      c.startingPort,
		KVSType:           c.kvsType,
		KVSSize:           c.kvsSize,
		CacheSize:         c.cacheSize,
		ServerThread:      c.serverThread,
		MaxKeyLen:         c.maxKeyLen,
		ReplicationScheme: c.scheme,
		ReplicationFactor: c.requestedFactor,
	}
	for sid, loc := range c.servers {
		fc.Servers = append(fc.Servers, serverEntry{ID: uint64(sid), Addr: loc.Addr, Port: loc.Port})
	}
	slices.SortFunc(fc.Servers, func(a, b serverEntry) int { return cmp.Compare(a.ID, b.ID) })
	for pid, attrs := range c.partitions {
		fc.Partitions = append(fc.Partitions, partitionEntry{ID: uint64(pid), Attrs: copyAttrs(attrs)})
	}
	slices.SortFunc(fc.Partitions, func(a, b partitionEntry) int { return cmp.Compare(a.ID, b.ID) })
	return fc
}

// Encode writes c as YAML.
func (c *Cluster) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.toFile()); err != nil {
		return errors.Wrap(err, "encode cluster config")
	}
	return enc.Close()
}

// SaveConfigFile writes c to path, replacing it atomically.
func (c *Cluster) SaveConfigFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	if err := c.Encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "close %s", tmp)
	}
	return os.Rename(tmp, path)
}

// PrintConfigFile loads the description at path and prints it to w.
func PrintConfigFile(w io.Writer, path string) error {
	c, err := LoadConfigFile(path)
	if err != nil {
		return err
	}
	c.Print(w)
	return nil
}
