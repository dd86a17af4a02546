package distributor

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/backend"
	"github.com/gautham-bhat-k/meadowlark/engine"
)

// progressEvery is how many entries are copied between progress log lines.
const progressEvery = 1000

// Copy writes every entry of ix to h and returns how many were sent. The walk
// stops at the first failure. Values are read under the index lock, so writes
// to ix may continue during the copy.
func Copy(ctx context.Context, ix *engine.Index, h backend.Handle) (int, error) {
	sent := 0
	err := ix.Walk(func(key, val []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, _, err := h.Put(ctx, key, val); err != nil {
			return errors.Wrapf(err, "send %q", key)
		}
		sent++
		if sent%progressEvery == 0 {
			log.Printf("[INFO] copy %s: %d entries sent", ix.Root(), sent)
		}
		return nil
	})
	if err != nil {
		return sent, errors.Wrapf(err, "copy index %s", ix.Root())
	}
	log.Printf("[INFO] copy %s done: %d entries", ix.Root(), sent)
	return sent, nil
}
