// Package server runs one node: it opens the indexes of the partitions placed
// on the node and answers backend requests for them.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/gautham-bhat-k/meadowlark/backend"
	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/engine"
	"github.com/gautham-bhat-k/meadowlark/partition"
)

type Server struct {
	ID   string
	Node config.NodeID

	cfg *config.Cluster
	pm  *partition.Manager
	eng *engine.Engine

	mu      sync.RWMutex
	indexes map[config.PartitionID]*engine.Index
}

func New(node config.NodeID, cfg *config.Cluster, pm *partition.Manager, eng *engine.Engine) *Server {
	return &Server{
		ID:      uuid.New().String(),
		Node:    node,
		cfg:     cfg,
		pm:      pm,
		eng:     eng,
		indexes: make(map[config.PartitionID]*engine.Index),
	}
}

// Hosted lists the partitions this node serves, ascending.
func (s *Server) Hosted() []config.PartitionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]config.PartitionID, 0, len(s.indexes))
	for pid := range s.indexes {
		out = append(out, pid)
	}
	slices.Sort(out)
	return out
}

// Index returns the open index of a hosted partition.
func (s *Server) Index(pid config.PartitionID) (*engine.Index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.indexes[pid]
	return ix, ok
}

// Serve accepts connections until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			lis.Close()
		case <-done:
		}
	}()

	log.Printf("[INFO] node %d serving on %s (instance %s)", s.Node, lis.Addr(), s.ID)
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("[WARN] couldn't accept connection: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	codec := newCodec(conn)
	for {
		var req backend.Request
		if err := codec.dec.Decode(&req); err != nil {
			if err != io.EOF {
				log.Printf("[WARN] reading request from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		resp := s.Handle(&req)
		if err := codec.enc.Encode(resp); err != nil {
			log.Printf("[WARN] writing response to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func errResponse(code backend.Code, format string, args ...any) *backend.Response {
	return &backend.Response{Status: backend.StatusError, Code: code, Err: fmt.Sprintf(format, args...)}
}
