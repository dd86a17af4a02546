package main

import (
	"log"

	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/engine"
	"github.com/gautham-bhat-k/meadowlark/errs"
)

// loadCluster reads the cluster description from path when given and stores
// a copy in the engine; without a path it falls back to the stored copy.
func loadCluster(path string, e *engine.Engine) (*config.Cluster, error) {
	if path != "" {
		c, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := e.SaveClusterMetadata(c); err != nil {
			log.Printf("[WARN] failed to save cluster config to database: %v", err)
		}
		log.Printf("[INFO] loaded cluster config from %s", path)
		return c, nil
	}

	c, err := e.LoadClusterMetadata()
	if err != nil {
		if errors.Is(err, engine.ErrKeyNotFound) {
			return nil, errors.New("no -config given and no saved cluster config found")
		}
		return nil, err
	}
	log.Printf("[INFO] loaded cluster config from database")
	return c, nil
}

// restoreRoots feeds the roots recorded by the engine back into c, then makes
// the engine the recorder for later updates. Roots of partitions the current
// config no longer has are skipped.
func restoreRoots(c *config.Cluster, e *engine.Engine) error {
	roots, err := e.Roots()
	if err != nil {
		return err
	}
	for pid, root := range roots {
		if err := c.UpdateRoot(pid, root); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				log.Printf("[WARN] skipping recorded root %q: %v", root, err)
				continue
			}
			return err
		}
	}
	c.SetRootRecorder(e)
	log.Printf("[INFO] restored %d partition roots", len(roots))
	return nil
}
