package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/session"
)

// ListenAndServeWS serves the same command protocol over WebSocket text
// messages, one command per message. Intended for clients that cannot hold a
// raw TCP socket.
func (s *Server) ListenAndServeWS(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/play", func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			obslog.L().Warn("ws_accept_error", zap.Error(err))
			return
		}
		s.serveWS(ctx, c, r.RemoteAddr)
	})

	srv := &http.Server{
		Addr:              s.cfg.WSListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	obslog.L().Info("server_listen_ws", zap.String("addr", s.cfg.WSListenAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) serveWS(ctx context.Context, c *websocket.Conn, remote string) {
	conn := newWSConn(c, remote)
	sess := session.New(conn)
	obslog.L().Info("client_connect",
		zap.String("session_id", sess.ID()),
		zap.String("remote", remote),
		zap.String("transport", "ws"),
	)

	s.serveSession(ctx, sess, func() (string, bool) {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return "", false
		}
		if typ != websocket.MessageText {
			return "", true
		}
		return string(data), true
	})
}
