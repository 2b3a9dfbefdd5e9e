package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atomweather/atomweather/pkg/lamport"
	"github.com/atomweather/atomweather/server/internal/alerts"
	"github.com/atomweather/atomweather/server/internal/config"
	"github.com/atomweather/atomweather/server/internal/metrics"
	"github.com/atomweather/atomweather/server/internal/store"
)

// State is the server's lifecycle phase.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// shutdownGrace bounds how long Run waits for in-flight connections after
// the listener closes.
const shutdownGrace = 5 * time.Second

// Server is the aggregation server. Create one with New, drive it with Run,
// and wait on Started before connecting.
type Server struct {
	cfg     config.ServerConfig
	clock   *lamport.Clock
	store   *store.Store
	metrics *metrics.Metrics
	alerts  *alerts.Engine

	// mu serializes every store mutation together with its snapshot flush,
	// so the on-disk state always reflects an accepted PUT before its
	// response is sent.
	mu sync.Mutex

	state   atomic.Int32
	started chan struct{}
	ln      net.Listener
}

// New creates a Server over the given store, clock, metrics and alert engine.
func New(cfg config.ServerConfig, st *store.Store, clk *lamport.Clock, m *metrics.Metrics, eng *alerts.Engine) *Server {
	return &Server{
		cfg:     cfg,
		clock:   clk,
		store:   st,
		metrics: m,
		alerts:  eng,
		started: make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Started is closed once the listener is bound and the server accepts
// connections.
func (s *Server) Started() <-chan struct{} {
	return s.started
}

// Addr returns the bound listener address. Valid only after Started.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Run binds the listener and serves until ctx is cancelled, then drains the
// worker pool and flushes a final snapshot.
func (s *Server) Run(ctx context.Context) error {
	s.state.Store(int32(StateStarting))

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("server: listen on port %d: %w", s.cfg.Port, err)
	}
	s.ln = ln
	s.state.Store(int32(StateRunning))
	close(s.started)
	slog.Info("aggregation server listening", "addr", ln.Addr().String())

	// Unblock Accept as soon as shutdown begins.
	go func() {
		<-ctx.Done()
		s.state.Store(int32(StateStopping))
		ln.Close()
	}()

	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		s.runSweeper(ctx)
	}()

	conns := make(chan net.Conn)
	var workerWG sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for conn := range conns {
				s.handleConn(conn)
			}
		}()
	}

	s.acceptLoop(ctx, conns)

	close(conns)
	drained := make(chan struct{})
	go func() {
		workerWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownGrace):
		slog.Warn("server: worker pool did not drain within grace period")
	}
	sweepWG.Wait()

	s.mu.Lock()
	s.flushLocked()
	s.mu.Unlock()

	s.state.Store(int32(StateStopped))
	slog.Info("aggregation server stopped")
	return nil
}

// acceptLoop accepts connections and hands them to the worker pool until ctx
// is cancelled. Each accept is bounded by AcceptTimeout so the loop polls
// for shutdown even when the listener stays idle.
func (s *Server) acceptLoop(ctx context.Context, conns chan<- net.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		if d, ok := s.ln.(interface{ SetDeadline(time.Time) error }); ok {
			d.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)) //nolint:errcheck
		}

		conn, err := s.ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.Warn("server: accept failed", "err", err)
			continue
		}

		select {
		case conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// runSweeper expires stale entries every SweepInterval.
func (s *Server) runSweeper(ctx context.Context) {
	t := time.NewTicker(s.cfg.Store.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.sweep(now)
		}
	}
}

// sweep removes expired entries and, when any were removed, flushes the
// snapshot. It shares the mutation critical section with the PUT handler.
func (s *Server) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := s.store.Expire(now)
	if len(evicted) == 0 {
		return
	}
	slog.Info("sweeper: expired stations", "stations", evicted)
	s.metrics.ObserveEvictions(metrics.ReasonExpired, len(evicted))
	s.metrics.SetStoreSize(s.store.Count())
	s.flushLocked()
}

// flushLocked writes the snapshot to disk. Callers must hold s.mu.
func (s *Server) flushLocked() bool {
	if err := s.store.Save(s.cfg.DataFile); err != nil {
		slog.Error("server: snapshot flush failed", "path", s.cfg.DataFile, "err", err)
		return false
	}
	s.metrics.ObserveSnapshotWrite()
	return true
}
