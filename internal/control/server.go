// Package control implements the line-oriented TCP protocol used to steer
// the relay: zoom_to, get_resolution and get_image.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/smazurov/zoomrelay/internal/crop"
	"github.com/smazurov/zoomrelay/internal/events"
	"github.com/smazurov/zoomrelay/internal/frame"
	"github.com/smazurov/zoomrelay/internal/snapshot"
)

// DefaultPort is the control port used when none is configured.
const DefaultPort = 20000

// Options configures a Server.
type Options struct {
	Addr      string
	Size      frame.Size
	Crop      *crop.State
	Snapshots *snapshot.Relay
	Bus       *events.Bus
	Logger    *slog.Logger
}

// Server accepts control connections and serves them one at a time.
type Server struct {
	addr      string
	size      frame.Size
	crop      *crop.State
	snapshots *snapshot.Relay
	bus       *events.Bus
	logger    *slog.Logger

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	active net.Conn
}

// NewServer creates a server. Call Listen before Serve.
func NewServer(opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      opts.Addr,
		size:      opts.Size,
		crop:      opts.Crop,
		snapshots: opts.Snapshots,
		bus:       opts.Bus,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Listen binds the control address.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.logger.Info("Control server listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Close is called. Each connection is
// handled to completion before the next one is accepted.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("control: Serve called before Listen")
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("Failed to accept control connection", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.setActive(conn)
		s.handleConnection(conn)
		s.setActive(nil)
	}
}

// Close stops accepting and drops the connection being served.
func (s *Server) Close() error {
	s.cancel()

	s.mu.Lock()
	if s.active != nil {
		s.active.Close()
	}
	s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) setActive(conn net.Conn) {
	s.mu.Lock()
	s.active = conn
	s.mu.Unlock()
}
