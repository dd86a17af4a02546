package kvs

import (
	"context"
	"log"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/backend"
	"github.com/gautham-bhat-k/meadowlark/config"
)

const poolShards = 16

// entry is one location's handle. ready is closed once the open attempt
// finished; h and err are immutable afterwards.
type entry struct {
	ready chan struct{}
	h     backend.Handle
	err   error
}

type shard struct {
	mu      sync.Mutex
	entries map[config.Location]*entry
}

// pool keeps at most one handle per location. Concurrent callers for the same
// location wait on the first open instead of dialing again. A failed open is
// not cached.
type pool struct {
	opener backend.Opener
	shards [poolShards]shard
}

func newPool(opener backend.Opener) *pool {
	p := &pool{opener: opener}
	for i := range p.shards {
		p.shards[i].entries = make(map[config.Location]*entry)
	}
	return p
}

func (p *pool) shardFor(loc config.Location) *shard {
	return &p.shards[xxhash.Sum64String(loc.String())%poolShards]
}

func (p *pool) getOrOpen(ctx context.Context, loc config.Location) (backend.Handle, error) {
	sh := p.shardFor(loc)
	for {
		sh.mu.Lock()
		e, ok := sh.entries[loc]
		if !ok {
			e = &entry{ready: make(chan struct{})}
			sh.entries[loc] = e
		}
		sh.mu.Unlock()

		if !ok {
			return p.open(ctx, sh, loc, e)
		}
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// An open aborted by its caller's context is retried by live waiters.
		if isContextErr(e.err) && ctx.Err() == nil {
			continue
		}
		return e.h, e.err
	}
}

func (p *pool) open(ctx context.Context, sh *shard, loc config.Location, e *entry) (backend.Handle, error) {
	e.h, e.err = p.opener.Open(ctx, loc)
	poolOpens.Inc()
	if e.err != nil {
		sh.mu.Lock()
		if sh.entries[loc] == e {
			delete(sh.entries, loc)
		}
		sh.mu.Unlock()
		log.Printf("[WARN] open backend %s: %v", loc, e.err)
	} else {
		log.Printf("[INFO] opened backend %s", loc)
	}
	close(e.ready)
	return e.h, e.err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// invalidate drops loc's entry if it still holds h and closes h.
func (p *pool) invalidate(loc config.Location, h backend.Handle) {
	sh := p.shardFor(loc)
	sh.mu.Lock()
	e, ok := sh.entries[loc]
	dropped := ok && isReady(e) && e.h == h
	if dropped {
		delete(sh.entries, loc)
	}
	sh.mu.Unlock()

	if dropped {
		poolInvalidations.Inc()
		log.Printf("[WARN] dropped broken backend handle %s", loc)
		h.Close()
	}
}

func isReady(e *entry) bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// locations returns the locations with an open handle.
func (p *pool) locations() []config.Location {
	var out []config.Location
	for i := range p.shards {
		sh := &p.shards[i]
		sh.mu.Lock()
		for loc, e := range sh.entries {
			if isReady(e) && e.err == nil {
				out = append(out, loc)
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// closeAll empties the pool and closes every handle.
func (p *pool) closeAll() int {
	var pending []*entry
	for i := range p.shards {
		sh := &p.shards[i]
		sh.mu.Lock()
		for _, e := range sh.entries {
			pending = append(pending, e)
		}
		sh.entries = make(map[config.Location]*entry)
		sh.mu.Unlock()
	}

	closed := 0
	for _, e := range pending {
		<-e.ready
		if e.h != nil {
			e.h.Close()
			closed++
		}
	}
	return closed
}
