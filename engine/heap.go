package engine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Token addresses a value in the heap. NullToken is never allocated.
type Token uint64

const NullToken Token = 0

var heapPrefix = []byte("heap:")

func heapKey(tok Token) []byte {
	k := make([]byte, len(heapPrefix)+8)
	copy(k, heapPrefix)
	binary.BigEndian.PutUint64(k[len(heapPrefix):], uint64(tok))
	return k
}

// loadHeapCursor resumes allocation after the highest live token.
func (e *Engine) loadHeapCursor() error {
	iter, err := e.Db.NewIter(&pebble.IterOptions{LowerBound: heapPrefix, UpperBound: prefixEnd(heapPrefix)})
	if err != nil {
		return fmt.Errorf("heap cursor: %w", err)
	}
	defer iter.Close()

	e.nextToken = 1
	if iter.Last() {
		e.nextToken = Token(binary.BigEndian.Uint64(iter.Key()[len(heapPrefix):])) + 1
	}
	return iter.Error()
}

// Alloc stores value and returns its token.
func (e *Engine) Alloc(value []byte) (Token, error) {
	e.heapMu.Lock()
	tok := e.nextToken
	e.nextToken++
	e.heapMu.Unlock()

	if err := e.Db.Set(heapKey(tok), value, pebble.Sync); err != nil {
		return NullToken, fmt.Errorf("heap alloc: %w", err)
	}
	return tok, nil
}

// Read returns a copy of the value at tok.
func (e *Engine) Read(tok Token) ([]byte, error) {
	if tok == NullToken {
		return nil, ErrBadToken
	}
	val, closer, err := e.Db.Get(heapKey(tok))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("heap read %d: %w", tok, ErrBadToken)
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// Free releases tok. Freeing NullToken is a no-op.
func (e *Engine) Free(tok Token) error {
	if tok == NullToken {
		return nil
	}
	return e.Db.Delete(heapKey(tok), pebble.Sync)
}
