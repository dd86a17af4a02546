package server

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gautham-bhat-k/meadowlark/backend"
	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/engine"
	"github.com/gautham-bhat-k/meadowlark/utils"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "meadowlark",
	Name:      "server_requests_total",
	Help:      "Backend requests handled by this node.",
}, []string{"op"})

// Handle executes one request against the index of the key's partition.
func (s *Server) Handle(req *backend.Request) *backend.Response {
	requestsTotal.WithLabelValues(req.Op.String()).Inc()
	if req.Op == backend.OpWipe {
		return s.wipe()
	}

	pid := config.PartitionID(utils.KeyPartition(req.Key, s.cfg.GetPartitionCount()))
	ix, ok := s.Index(pid)
	if !ok {
		return errResponse(backend.CodeNotHosted, "partition %d not hosted on node %d", pid, s.Node)
	}

	switch req.Op {
	case backend.OpPut:
		return s.put(ix, req.Key, req.Value)
	case backend.OpGet:
		return s.get(ix, req.Key)
	case backend.OpDel:
		return s.del(ix, req.Key)
	}
	return errResponse(backend.CodeBadRequest, "unknown op %d", req.Op)
}

func (s *Server) put(ix *engine.Index, key, value []byte) *backend.Response {
	old, replaced, err := ix.Store(key, value)
	if err != nil {
		return storageError("put", err)
	}
	if !replaced {
		return &backend.Response{Status: backend.StatusNotFound}
	}
	return &backend.Response{Status: backend.StatusOK, Value: old}
}

func (s *Server) get(ix *engine.Index, key []byte) *backend.Response {
	val, found, err := ix.Load(key)
	if err != nil {
		return storageError("get", err)
	}
	if !found {
		return &backend.Response{Status: backend.StatusNotFound}
	}
	return &backend.Response{Status: backend.StatusOK, Value: val}
}

func (s *Server) del(ix *engine.Index, key []byte) *backend.Response {
	found, err := ix.Delete(key)
	if err != nil {
		return storageError("del", err)
	}
	if !found {
		return &backend.Response{Status: backend.StatusNotFound}
	}
	return &backend.Response{Status: backend.StatusOK}
}

// wipe empties every hosted partition.
func (s *Server) wipe() *backend.Response {
	for _, pid := range s.Hosted() {
		ix, _ := s.Index(pid)
		var keys [][]byte
		err := ix.List(func(key []byte, _ engine.Token) error {
			keys = append(keys, key)
			return nil
		})
		if err != nil {
			return errResponse(backend.CodeInternal, "wipe partition %d: %v", pid, err)
		}
		for _, k := range keys {
			if _, err := ix.Delete(k); err != nil {
				return errResponse(backend.CodeInternal, "wipe partition %d: %v", pid, err)
			}
		}
	}
	log.Printf("[INFO] node %d wiped", s.Node)
	return &backend.Response{Status: backend.StatusOK}
}

func storageError(op string, err error) *backend.Response {
	if errors.Is(err, engine.ErrKeyLength) {
		return errResponse(backend.CodeInvalidKey, "%s: %v", op, err)
	}
	return errResponse(backend.CodeInternal, "%s: %v", op, err)
}
