package backend

import (
	"context"
	"encoding/gob"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/errs"
)

// ErrConnBroken marks a handle whose connection failed mid-request. The handle
// must be discarded.
var ErrConnBroken = errors.Wrap(errs.ErrBackendUnavailable, "connection broken")

// Errors reported by the backend for one request. The connection stays usable
// and none of them is transient: repeating the request fails the same way.
var (
	ErrRemote    = errors.Wrap(errs.ErrBackendRejected, "backend failed request")
	ErrNotHosted = errors.Wrap(errs.ErrRouting, "partition not hosted by node")
)

// Dialer opens TCP handles.
type Dialer struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

func NewDialer() *Dialer {
	return &Dialer{DialTimeout: 2 * time.Second, RequestTimeout: 5 * time.Second}
}

func (d *Dialer) Open(ctx context.Context, loc config.Location) (Handle, error) {
	nd := net.Dialer{Timeout: d.DialTimeout}
	c, err := nd.DialContext(ctx, "tcp", loc.String())
	if err != nil {
		return nil, errors.Wrapf(errs.ErrBackendUnavailable, "open %s: %v", loc, err)
	}
	return newConn(c, loc, d.RequestTimeout), nil
}

type conn struct {
	loc     config.Location
	timeout time.Duration

	mu     sync.Mutex
	c      net.Conn
	enc    *gob.Encoder
	dec    *gob.Decoder
	broken bool
}

func newConn(c net.Conn, loc config.Location, timeout time.Duration) *conn {
	return &conn{loc: loc, timeout: timeout, c: c, enc: gob.NewEncoder(c), dec: gob.NewDecoder(c)}
}

func (c *conn) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errs.ErrBackendUnavailable, "%s %s: %v", req.Op, c.loc, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return nil, errors.Wrapf(ErrConnBroken, "%s %s", req.Op, c.loc)
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.c.SetDeadline(deadline); err != nil {
		c.broken = true
		return nil, errors.Wrapf(ErrConnBroken, "%s %s: %v", req.Op, c.loc, err)
	}

	var resp Response
	if err := c.enc.Encode(req); err != nil {
		c.broken = true
		return nil, errors.Wrapf(ErrConnBroken, "%s %s: write: %v", req.Op, c.loc, err)
	}
	if err := c.dec.Decode(&resp); err != nil {
		c.broken = true
		return nil, errors.Wrapf(ErrConnBroken, "%s %s: read: %v", req.Op, c.loc, err)
	}
	if resp.Status == StatusError {
		return nil, errors.Wrapf(remoteKind(resp.Code), "%s %s: %s", req.Op, c.loc, resp.Err)
	}
	return &resp, nil
}

func remoteKind(code Code) error {
	switch code {
	case CodeNotHosted:
		return ErrNotHosted
	case CodeInvalidKey:
		return errs.ErrInvalidKey
	}
	return ErrRemote
}

func (c *conn) Put(ctx context.Context, key, value []byte) ([]byte, bool, error) {
	resp, err := c.roundTrip(ctx, &Request{Op: OpPut, Key: key, Value: value})
	if err != nil {
		return nil, false, err
	}
	if resp.Status == StatusNotFound {
		return nil, false, nil
	}
	return resp.Value, true, nil
}

func (c *conn) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	resp, err := c.roundTrip(ctx, &Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	if resp.Status == StatusNotFound {
		return nil, false, nil
	}
	return resp.Value, true, nil
}

func (c *conn) Del(ctx context.Context, key []byte) (bool, error) {
	resp, err := c.roundTrip(ctx, &Request{Op: OpDel, Key: key})
	if err != nil {
		return false, err
	}
	return resp.Status == StatusOK, nil
}

func (c *conn) Wipe(ctx context.Context) error {
	_, err := c.roundTrip(ctx, &Request{Op: OpWipe})
	return err
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = true
	return c.c.Close()
}
