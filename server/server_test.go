package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/gautham-bhat-k/meadowlark/backend"
	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/engine"
	"github.com/gautham-bhat-k/meadowlark/errs"
	"github.com/gautham-bhat-k/meadowlark/partition"
	"github.com/gautham-bhat-k/meadowlark/replication"
	"github.com/gautham-bhat-k/meadowlark/utils"
)

type fixture struct {
	cfg *config.Cluster
	pm  *partition.Manager
	eng *engine.Engine
	fs  vfs.FS
}

func newFixture(t *testing.T, fs vfs.FS) *fixture {
	t.Helper()
	cfg := config.New()
	cfg.SetShelfUser("shelf")
	cfg.SetPartitionCount(4)
	cfg.SetNodeCount(2)
	cfg.SetServerCount(1)
	cfg.SetReplicationScheme(replication.None)
	require.NoError(t, cfg.AddServer(0, config.Location{Addr: "127.0.0.1", Port: 9000}))
	require.NoError(t, cfg.DeriveReplicationFactor(1))

	eng, err := engine.Open("node", &pebble.Options{FS: fs})
	require.NoError(t, err)
	roots, err := eng.Roots()
	require.NoError(t, err)
	for pid, root := range roots {
		require.NoError(t, cfg.UpdateRoot(pid, root))
	}
	cfg.SetRootRecorder(eng)

	pm := partition.NewManager(cfg)
	require.NoError(t, pm.Init())
	return &fixture{cfg: cfg, pm: pm, eng: eng, fs: fs}
}

// keyFor finds a key that hashes to one of the given partitions.
func keyFor(t *testing.T, parts []config.PartitionID, count uint64, salt string) []byte {
	t.Helper()
	for i := 0; i < 10000; i++ {
		k := []byte(fmt.Sprintf("%s-%d", salt, i))
		if slices.Contains(parts, config.PartitionID(utils.KeyPartition(k, count))) {
			return k
		}
	}
	t.Fatalf("no key for partitions %v", parts)
	return nil
}

func TestBootstrapCreatesAndRecordsRoots(t *testing.T) {
	f := newFixture(t, vfs.NewMem())
	defer f.eng.Close()

	s := New(1, f.cfg, f.pm, f.eng)
	require.NoError(t, s.Bootstrap())
	assert.Equal(t, []config.PartitionID{1, 3}, s.Hosted())

	for _, pid := range s.Hosted() {
		attrs, ok := f.cfg.PartitionAttrs(pid)
		require.True(t, ok)
		assert.Equal(t, f.cfg.GetShelfUserForPartition(pid), attrs[config.AttrRoot])
	}
	roots, err := f.eng.Roots()
	require.NoError(t, err)
	assert.Equal(t, "shelf_1", roots[1])
	assert.Equal(t, "shelf_3", roots[3])

	// bootstrap does not invalidate placement
	assert.True(t, f.pm.Ready())
}

func TestBootstrapReopensAfterRestart(t *testing.T) {
	fs := vfs.NewMem()
	f := newFixture(t, fs)
	s := New(0, f.cfg, f.pm, f.eng)
	require.NoError(t, s.Bootstrap())

	key := keyFor(t, s.Hosted(), 4, "restart")
	resp := s.Handle(&backend.Request{Op: backend.OpPut, Key: key, Value: []byte("durable")})
	require.Equal(t, backend.StatusNotFound, resp.Status)
	require.NoError(t, f.eng.Close())

	f2 := newFixture(t, fs)
	defer f2.eng.Close()
	s2 := New(0, f2.cfg, f2.pm, f2.eng)
	require.NoError(t, s2.Bootstrap())

	resp = s2.Handle(&backend.Request{Op: backend.OpGet, Key: key})
	require.Equal(t, backend.StatusOK, resp.Status)
	assert.Equal(t, []byte("durable"), resp.Value)
}

func TestHandle(t *testing.T) {
	f := newFixture(t, vfs.NewMem())
	defer f.eng.Close()
	s := New(0, f.cfg, f.pm, f.eng)
	require.NoError(t, s.Bootstrap())
	key := keyFor(t, s.Hosted(), 4, "handle")

	resp := s.Handle(&backend.Request{Op: backend.OpGet, Key: key})
	assert.Equal(t, backend.StatusNotFound, resp.Status)

	resp = s.Handle(&backend.Request{Op: backend.OpPut, Key: key, Value: []byte("a")})
	assert.Equal(t, backend.StatusNotFound, resp.Status)
	resp = s.Handle(&backend.Request{Op: backend.OpPut, Key: key, Value: []byte("b")})
	assert.Equal(t, backend.StatusOK, resp.Status)
	assert.Equal(t, []byte("a"), resp.Value)

	resp = s.Handle(&backend.Request{Op: backend.OpDel, Key: key})
	assert.Equal(t, backend.StatusOK, resp.Status)
	resp = s.Handle(&backend.Request{Op: backend.OpDel, Key: key})
	assert.Equal(t, backend.StatusNotFound, resp.Status)

	t.Run("wipe", func(t *testing.T) {
		a := keyFor(t, s.Hosted(), 4, "wipe-a")
		b := keyFor(t, s.Hosted(), 4, "wipe-b")
		for _, k := range [][]byte{a, b} {
			s.Handle(&backend.Request{Op: backend.OpPut, Key: k, Value: []byte("x")})
		}
		resp := s.Handle(&backend.Request{Op: backend.OpWipe})
		require.Equal(t, backend.StatusOK, resp.Status)
		for _, k := range [][]byte{a, b} {
			resp := s.Handle(&backend.Request{Op: backend.OpGet, Key: k})
			assert.Equal(t, backend.StatusNotFound, resp.Status)
		}
	})
	t.Run("foreign partition", func(t *testing.T) {
		foreign := keyFor(t, []config.PartitionID{1, 3}, 4, "foreign")
		resp := s.Handle(&backend.Request{Op: backend.OpGet, Key: foreign})
		assert.Equal(t, backend.StatusError, resp.Status)
		assert.Equal(t, backend.CodeNotHosted, resp.Code)
		assert.Contains(t, resp.Err, "not hosted on node 0")
	})
	t.Run("key too long", func(t *testing.T) {
		long := keyFor(t, s.Hosted(), 4, string(make([]byte, 64)))
		resp := s.Handle(&backend.Request{Op: backend.OpPut, Key: long, Value: []byte("x")})
		assert.Equal(t, backend.StatusError, resp.Status)
		assert.Equal(t, backend.CodeInvalidKey, resp.Code)
	})
	t.Run("unknown op", func(t *testing.T) {
		resp := s.Handle(&backend.Request{Op: backend.Op(99), Key: key})
		assert.Equal(t, backend.StatusError, resp.Status)
		assert.Equal(t, backend.CodeBadRequest, resp.Code)
	})
}

func TestServeOverTCP(t *testing.T) {
	f := newFixture(t, vfs.NewMem())
	defer f.eng.Close()
	s := New(0, f.cfg, f.pm, f.eng)
	require.NoError(t, s.Bootstrap())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	port := uint64(lis.Addr().(*net.TCPAddr).Port)
	h, err := backend.NewDialer().Open(ctx, config.Location{Addr: "127.0.0.1", Port: port})
	require.NoError(t, err)
	defer h.Close()

	key := keyFor(t, s.Hosted(), 4, "tcp")
	_, replaced, err := h.Put(ctx, key, []byte("v"))
	require.NoError(t, err)
	assert.False(t, replaced)
	val, found, err := h.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)

	foreign := keyFor(t, []config.PartitionID{1, 3}, 4, "tcp-foreign")
	_, _, err = h.Get(ctx, foreign)
	assert.True(t, errors.Is(err, backend.ErrNotHosted))
	assert.True(t, errors.Is(err, errs.ErrRouting))
	assert.False(t, errs.IsTransient(err))

	long := keyFor(t, s.Hosted(), 4, string(make([]byte, 64)))
	_, _, err = h.Put(ctx, long, []byte("x"))
	assert.True(t, errors.Is(err, errs.ErrInvalidKey))
	assert.False(t, errs.IsTransient(err))

	// rejected requests leave the connection usable
	_, found, err = h.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)

	cancel()
	assert.NoError(t, <-done)
}

func TestGetDuringOverwrites(t *testing.T) {
	f := newFixture(t, vfs.NewMem())
	defer f.eng.Close()
	s := New(0, f.cfg, f.pm, f.eng)
	require.NoError(t, s.Bootstrap())
	key := keyFor(t, s.Hosted(), 4, "race")
	s.Handle(&backend.Request{Op: backend.OpPut, Key: key, Value: []byte("v-init")})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var failures atomic.Int64
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				resp := s.Handle(&backend.Request{Op: backend.OpGet, Key: key})
				if resp.Status != backend.StatusOK {
					failures.Add(1)
				}
			}
		}()
	}
	for i := 0; i < 500; i++ {
		resp := s.Handle(&backend.Request{Op: backend.OpPut, Key: key, Value: []byte(fmt.Sprintf("v-%d", i))})
		require.Equal(t, backend.StatusOK, resp.Status)
	}
	close(stop)
	wg.Wait()
	assert.Zero(t, failures.Load())

	resp := s.Handle(&backend.Request{Op: backend.OpGet, Key: key})
	require.Equal(t, backend.StatusOK, resp.Status)
	assert.Equal(t, []byte("v-499"), resp.Value)
}

// countingListener records how often Close is called.
type countingListener struct {
	net.Listener
	closes atomic.Int32
}

func (l *countingListener) Close() error {
	l.closes.Add(1)
	return l.Listener.Close()
}

func TestServeReturnsOnListenerFailure(t *testing.T) {
	f := newFixture(t, vfs.NewMem())
	defer f.eng.Close()
	s := New(0, f.cfg, f.pm, f.eng)

	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	lis := &countingListener{Listener: inner}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	require.NoError(t, lis.Close())
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, net.ErrClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the listener closed")
	}

	// the watcher exited with Serve, so a late cancel closes nothing
	cancel()
	assert.Never(t, func() bool { return lis.closes.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond)
}
