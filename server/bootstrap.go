package server

import (
	"log"

	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/engine"
)

// Bootstrap opens an index for every partition placed on the node, at any
// rank. A partition with a recorded root reopens it; otherwise a fresh index
// is created and its root published with UpdateRoot.
func (s *Server) Bootstrap() error {
	if err := s.pm.Refresh(); err != nil {
		return errors.Wrapf(err, "bootstrap node %d", s.Node)
	}
	infos, err := s.pm.FindPartitionsByNode(s.Node)
	if err != nil {
		return errors.Wrapf(err, "bootstrap node %d", s.Node)
	}

	maxKey := int(s.cfg.GetMaxKeyLen())
	opened := make(map[config.PartitionID]*engine.Index, len(infos))
	for _, info := range infos {
		root, ok := info.Attrs[config.AttrRoot]
		if !ok || root == "" {
			root = s.cfg.GetShelfUserForPartition(info.ID)
		}

		ix, created, err := s.openOrCreate(root, maxKey)
		if err != nil {
			return errors.Wrapf(err, "bootstrap partition %d", info.ID)
		}
		if info.Attrs[config.AttrRoot] != root {
			if err := s.cfg.UpdateRoot(info.ID, root); err != nil {
				return errors.Wrapf(err, "bootstrap partition %d", info.ID)
			}
		}
		if created {
			log.Printf("[INFO] node %d: created index %q for partition %d", s.Node, root, info.ID)
		}
		opened[info.ID] = ix
	}

	s.mu.Lock()
	s.indexes = opened
	s.mu.Unlock()
	log.Printf("[INFO] node %d hosts %d partitions", s.Node, len(opened))
	return nil
}

func (s *Server) openOrCreate(root string, maxKey int) (*engine.Index, bool, error) {
	ix, err := s.eng.OpenIndex(root, maxKey)
	if err == nil {
		return ix, false, nil
	}
	if !errors.Is(err, engine.ErrIndexNotFound) {
		return nil, false, err
	}
	ix, err = s.eng.CreateIndex(root, maxKey)
	if err != nil {
		return nil, false, err
	}
	return ix, true, nil
}
