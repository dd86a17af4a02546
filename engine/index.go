package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

const rootsHash = "idx-root"

// Index maps keys of bounded length to heap tokens for one partition. The root
// string is the durable handle that reopens it.
type Index struct {
	e      *Engine
	root   string
	prefix []byte
	maxKey int

	// mu orders heap reclamation against readers: Load holds it shared from
	// token lookup through the heap read; Store and Delete hold it exclusively
	// from the index write through freeing the replaced token.
	mu sync.RWMutex
}

// index returns the one Index value for root, so every caller shares its lock.
func (e *Engine) index(root string, maxKey int) *Index {
	e.idxMu.Lock()
	defer e.idxMu.Unlock()
	if ix, ok := e.indexes[root]; ok {
		return ix
	}
	ix := &Index{e: e, root: root, prefix: []byte(fmt.Sprintf("idx:%d:%s/", len(root), root)), maxKey: maxKey}
	e.indexes[root] = ix
	return ix
}

// CreateIndex creates an empty index under root. The root marker is synced
// before CreateIndex returns, so the root may be published afterwards.
func (e *Engine) CreateIndex(root string, maxKey int) (*Index, error) {
	if _, err := e.HGet(rootsHash, root); err == nil {
		return nil, fmt.Errorf("create index %s: %w", root, ErrIndexExists)
	} else if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}
	if err := e.HSet(rootsHash, root, "1"); err != nil {
		return nil, fmt.Errorf("create index %s: %w", root, err)
	}
	return e.index(root, maxKey), nil
}

// OpenIndex reopens the index created under root.
func (e *Engine) OpenIndex(root string, maxKey int) (*Index, error) {
	if _, err := e.HGet(rootsHash, root); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("open index %s: %w", root, ErrIndexNotFound)
		}
		return nil, err
	}
	return e.index(root, maxKey), nil
}

func (ix *Index) Root() string { return ix.root }

func (ix *Index) key(k []byte) ([]byte, error) {
	if len(k) == 0 || len(k) > ix.maxKey {
		return nil, fmt.Errorf("index %s: key length %d outside [1, %d]: %w", ix.root, len(k), ix.maxKey, ErrKeyLength)
	}
	return append(append([]byte(nil), ix.prefix...), k...), nil
}

func (ix *Index) getLocked(ik []byte) (Token, error) {
	val, closer, err := ix.e.Db.Get(ik)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return NullToken, nil
		}
		return NullToken, err
	}
	defer closer.Close()
	return Token(binary.BigEndian.Uint64(val)), nil
}

// Get returns the token stored under k, or NullToken. The token may be freed
// by a concurrent Store or Delete; use Load to read the value safely.
func (ix *Index) Get(k []byte) (Token, error) {
	ik, err := ix.key(k)
	if err != nil {
		return NullToken, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.getLocked(ik)
}

// Put stores tok under k and returns the token it replaced, or NullToken. The
// caller owns the returned token and must Free it.
func (ix *Index) Put(k []byte, tok Token) (Token, error) {
	if tok == NullToken {
		return NullToken, ErrBadToken
	}
	ik, err := ix.key(k)
	if err != nil {
		return NullToken, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.putLocked(ik, tok)
}

func (ix *Index) putLocked(ik []byte, tok Token) (Token, error) {
	prev, err := ix.getLocked(ik)
	if err != nil {
		return NullToken, err
	}
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(tok))
	if err := ix.e.Db.Set(ik, v[:], pebble.Sync); err != nil {
		return NullToken, err
	}
	return prev, nil
}

// Destroy removes k and returns its token, or NullToken if absent.
func (ix *Index) Destroy(k []byte) (Token, error) {
	ik, err := ix.key(k)
	if err != nil {
		return NullToken, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.destroyLocked(ik)
}

func (ix *Index) destroyLocked(ik []byte) (Token, error) {
	prev, err := ix.getLocked(ik)
	if err != nil || prev == NullToken {
		return NullToken, err
	}
	if err := ix.e.Db.Delete(ik, pebble.Sync); err != nil {
		return NullToken, err
	}
	return prev, nil
}

// Load returns a copy of the value stored under k.
func (ix *Index) Load(k []byte) ([]byte, bool, error) {
	ik, err := ix.key(k)
	if err != nil {
		return nil, false, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tok, err := ix.getLocked(ik)
	if err != nil || tok == NullToken {
		return nil, false, err
	}
	val, err := ix.e.Read(tok)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Store writes value under k and returns the value it replaced. The replaced
// value's heap slot is freed before Store returns.
func (ix *Index) Store(k, value []byte) ([]byte, bool, error) {
	ik, err := ix.key(k)
	if err != nil {
		return nil, false, err
	}
	tok, err := ix.e.Alloc(value)
	if err != nil {
		return nil, false, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	prev, err := ix.putLocked(ik, tok)
	if err != nil {
		ix.e.Free(tok)
		return nil, false, err
	}
	if prev == NullToken {
		return nil, false, nil
	}
	old, err := ix.e.Read(prev)
	if err != nil {
		return nil, false, fmt.Errorf("index %s: read replaced value: %w", ix.root, err)
	}
	if err := ix.e.Free(prev); err != nil {
		return nil, false, fmt.Errorf("index %s: free replaced value: %w", ix.root, err)
	}
	return old, true, nil
}

// Delete removes k and frees its value.
func (ix *Index) Delete(k []byte) (bool, error) {
	ik, err := ix.key(k)
	if err != nil {
		return false, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	tok, err := ix.destroyLocked(ik)
	if err != nil || tok == NullToken {
		return false, err
	}
	if err := ix.e.Free(tok); err != nil {
		return false, fmt.Errorf("index %s: free value: %w", ix.root, err)
	}
	return true, nil
}

// List visits every entry in key order. Returning an error from fn stops the
// walk.
func (ix *Index) List(fn func(key []byte, tok Token) error) error {
	iter, err := ix.e.Db.NewIter(&pebble.IterOptions{LowerBound: ix.prefix, UpperBound: prefixEnd(ix.prefix)})
	if err != nil {
		return fmt.Errorf("list index %s: %w", ix.root, err)
	}
	defer iter.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		key := append([]byte(nil), iter.Key()[len(ix.prefix):]...)
		if err := fn(key, Token(binary.BigEndian.Uint64(iter.Value()))); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Walk visits every entry with a copy of its value. Entries deleted during the
// walk are skipped.
func (ix *Index) Walk(fn func(key, value []byte) error) error {
	var keys [][]byte
	err := ix.List(func(key []byte, _ Token) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		val, ok, err := ix.Load(k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(k, val); err != nil {
			return err
		}
	}
	return nil
}
