// Package backend is the client side of the node protocol: open(Location) ->
// Handle, Handle.Put/Get/Del. Requests and responses are gob frames on one
// persistent TCP connection per location.
package backend

import (
	"context"

	"github.com/gautham-bhat-k/meadowlark/config"
)

type Op uint8

const (
	OpPut Op = iota + 1
	OpGet
	OpDel
	OpWipe
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "PUT"
	case OpGet:
		return "GET"
	case OpDel:
		return "DEL"
	case OpWipe:
		return "WIPE"
	}
	return "UNKNOWN"
}

type Status uint8

const (
	StatusOK Status = iota
	StatusNotFound
	StatusError
)

// Code classifies a StatusError response.
type Code uint8

const (
	// CodeInternal is a storage failure on the backend.
	CodeInternal Code = iota
	// CodeNotHosted means the key's partition is not placed on the node.
	CodeNotHosted
	CodeInvalidKey
	CodeBadRequest
)

type Request struct {
	Op    Op
	Key   []byte
	Value []byte
}

// Response to a Request. For PUT, Value is the replaced value when Status is
// StatusOK and StatusNotFound means the key was new.
type Response struct {
	Status Status
	Code   Code
	Value  []byte
	Err    string
}

// Handle is an open connection to one backend location. Implementations are
// safe for concurrent use.
type Handle interface {
	// Put stores value and returns the value it replaced, if any.
	Put(ctx context.Context, key, value []byte) (prev []byte, replaced bool, err error)
	Get(ctx context.Context, key []byte) (value []byte, found bool, err error)
	Del(ctx context.Context, key []byte) (existed bool, err error)
	// Wipe drops every key the backend holds.
	Wipe(ctx context.Context) error
	Close() error
}

type Opener interface {
	Open(ctx context.Context, loc config.Location) (Handle, error)
}
