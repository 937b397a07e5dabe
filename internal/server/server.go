package server

import (
	"bufio"
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/config"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/leaderboard"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/match"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/matchmaker"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/rating"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/session"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/store"
)

// Server owns the shared game state and serves the text protocol over TCP
// (and optionally WebSocket). One goroutine per client reads and dispatches
// commands; the matchmaking tick runs separately.
type Server struct {
	cfg *config.AppConfig

	store    store.Store
	registry *session.Registry
	index    *match.Index
	queue    *matchmaker.Queue
	ratings  *rating.Engine
	scores   *leaderboard.Maintainer
}

func New(cfg *config.AppConfig, st store.Store) *Server {
	index := match.NewIndex()
	return &Server{
		cfg:      cfg,
		store:    st,
		registry: session.NewRegistry(),
		index:    index,
		queue:    matchmaker.NewQueue(index),
		ratings:  rating.NewEngine(st),
		scores:   leaderboard.NewMaintainer(st),
	}
}

// Queue exposes the matchmaking queue (admin counters, pairing loop).
func (s *Server) Queue() *matchmaker.Queue { return s.queue }

// Registry exposes the session registry (admin counters).
func (s *Server) Registry() *session.Registry { return s.registry }

// Index exposes the active-match index (admin counters).
func (s *Server) Index() *match.Index { return s.index }

// ListenAndServe accepts TCP clients until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts clients from ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	obslog.L().Info("server_listen", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			obslog.L().Warn("server_accept_error", zap.Error(err))
			continue
		}
		go s.serveTCP(ctx, nc)
	}
}

func (s *Server) serveTCP(ctx context.Context, nc net.Conn) {
	conn := newTCPConn(nc)
	sess := session.New(conn)
	obslog.L().Info("client_connect",
		zap.String("session_id", sess.ID()),
		zap.String("remote", sess.RemoteAddr()),
	)

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 4096), s.cfg.MaxLineBytes)
	s.serveSession(ctx, sess, func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	})
}

// serveSession runs the read-dispatch loop for one client and performs the
// full disconnect sequence when the transport drains: queue removal, forfeit
// of any active match, registry removal.
func (s *Server) serveSession(ctx context.Context, sess *session.Session, readLine func() (string, bool)) {
	defer s.disconnect(ctx, sess)

	for {
		if ctx.Err() != nil {
			return
		}
		line, ok := readLine()
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		s.Handle(ctx, sess, line)
	}
}

func (s *Server) disconnect(ctx context.Context, sess *session.Session) {
	s.queue.CancelSession(sess)

	if m, ok := s.index.Get(sess.ID()); ok {
		if out, resolved := m.Forfeit(sess.Username()); resolved {
			s.resolve(ctx, sess, m, out)
		}
	}

	s.registry.Unregister(sess)
	_ = sess.Close()
	obslog.L().Info("client_disconnect",
		zap.String("session_id", sess.ID()),
		zap.String("remote", sess.RemoteAddr()),
	)
}
