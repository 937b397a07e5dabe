package admin

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/match"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/matchmaker"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/session"
)

// Status is the counters payload served at /status.
type Status struct {
	Sessions      int `json:"sessions"`
	QueueDepth    int `json:"queue_depth"`
	ActiveMatches int `json:"active_matches"`
}

// Server exposes operational counters over HTTP. It never touches the game
// protocol; read-only by construction.
type Server struct {
	registry *session.Registry
	queue    *matchmaker.Queue
	index    *match.Index
}

func NewServer(registry *session.Registry, queue *matchmaker.Queue, index *match.Index) *Server {
	return &Server{registry: registry, queue: queue, index: index}
}

func (a *Server) handler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/status":
		st := Status{
			Sessions:      a.registry.Count(),
			QueueDepth:    a.queue.Len(),
			ActiveMatches: a.index.Count(),
		}
		raw, err := json.Marshal(st)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(raw)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

// ListenAndServe serves until ctx is cancelled.
func (a *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{Handler: a.handler}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown()
	}()
	obslog.L().Info("admin_listen", zap.String("addr", addr))
	return srv.ListenAndServe(addr)
}
