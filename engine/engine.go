package engine

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Engine is a node's pebble store. It holds the durable partition roots, the
// per-partition indexes and the value heap they point into.
type Engine struct {
	Db *pebble.DB

	heapMu    sync.Mutex
	nextToken Token

	idxMu   sync.Mutex
	indexes map[string]*Index
}

// Open opens (or creates) the store at path. opts may be nil.
func Open(path string, opts *pebble.Options) (*Engine, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") ||
			strings.Contains(errMsg, "used by another process") {
			return nil, fmt.Errorf("pebble db at %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}

	e := &Engine{Db: db, indexes: make(map[string]*Index)}
	if err := e.loadHeapCursor(); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("[INFO] using pebble db at %s", path)
	return e, nil
}

func (e *Engine) Close() error {
	if e.Db == nil {
		return nil
	}
	err := e.Db.Close()
	e.Db = nil
	return err
}

// Get retrieves the value for a given key.
// returns ErrKeyNotFound if the key does not exist.
func (e *Engine) Get(key string) (string, error) {
	if e.Db == nil {
		return "", errors.New("database not initialized")
	}
	val, closer, err := e.Db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrKeyNotFound
		}
		return "", err
	}
	defer closer.Close()
	return string(val), nil
}

func (e *Engine) HSet(hash, field, value string) error {
	key := fmt.Sprintf("%s:%s", hash, field)
	return e.Db.Set([]byte(key), []byte(value), pebble.Sync)
}

func (e *Engine) HGet(hash, field string) (string, error) {
	return e.Get(fmt.Sprintf("%s:%s", hash, field))
}

// HScan visits every field of hash in key order.
func (e *Engine) HScan(hash string, fn func(field, value string) error) error {
	prefix := []byte(hash + ":")
	iter, err := e.Db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return fmt.Errorf("scan %s: %w", hash, err)
	}
	defer iter.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		field := string(iter.Key()[len(prefix):])
		if err := fn(field, string(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
