// Package relay implements the TCP chat relay: it accepts connections, runs one
// handler per connection through login, pairing and message relay, and tears
// each connection down exactly once.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mcoot/pairchat/internal/model"
	"github.com/mcoot/pairchat/internal/services/session"
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = errors.New("relay: server closed")

var errServerFull = errors.New("connection limit reached")

const acceptBackoff = 50 * time.Millisecond

// Authenticator is the credential store used by connection handlers
type Authenticator interface {
	Register(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) error
}

// Server accepts relay connections and tracks them in a connection table
type Server struct {
	cfg      Config
	auth     Authenticator
	registry *session.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[model.ConnID]*conn
	closing  bool

	// ctx is cancelled on Shutdown and parents every handler
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a relay server
func NewServer(cfg Config, auth Authenticator, registry *session.Registry, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg.withDefaults(),
		auth:     auth,
		registry: registry,
		logger:   logger.With(slog.String("component", "relay")),
		conns:    make(map[model.ConnID]*conn),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("relay listening", slog.String("addr", ln.Addr().String()))

	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			s.logger.Warn("accept failed", slog.String("error", err.Error()))
			time.Sleep(acceptBackoff)
			continue
		}
		s.handle(nc)
	}
}

// Shutdown stops accepting, ends every handler and waits for them to finish.
// If ctx expires first, remaining sockets are closed and ctx's error returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	ln := s.listener
	s.mu.Unlock()

	s.logger.Info("shutting down relay server")

	if ln != nil {
		_ = ln.Close()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("relay server stopped")
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for _, c := range s.conns {
			_ = c.close()
		}
		s.mu.Unlock()
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// Addr returns the listen address, resolved once listening
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// ConnectionCount returns the number of live connections
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handle(nc net.Conn) {
	c := newConn(nc, s.cfg.WriteTimeout)

	if err := s.track(c); err != nil {
		s.logger.Warn("connection rejected",
			slog.String("remote_addr", c.remoteAddr()),
			slog.String("reason", err.Error()))
		if errors.Is(err, errServerFull) {
			_ = c.send(failure(msgServerFull))
		}
		_ = c.close()
		return
	}

	h := newHandler(s, c)
	go func() {
		defer s.wg.Done()
		h.run(s.ctx)
	}()
}

// track adds c to the connection table, enforcing the connection limit
func (s *Server) track(c *conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return ErrServerClosed
	}
	if s.cfg.MaxConnections > 0 && len(s.conns) >= s.cfg.MaxConnections {
		return errServerFull
	}
	s.conns[c.id] = c
	s.wg.Add(1)
	return nil
}

func (s *Server) untrack(id model.ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// lookup returns a live connection, or nil if it has gone
func (s *Server) lookup(id model.ConnID) *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[id]
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
