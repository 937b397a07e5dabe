package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AlexYeomanAQ/TetraClashServer/internal/admin"
	appcfg "github.com/AlexYeomanAQ/TetraClashServer/internal/config"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/obslog"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/server"
	"github.com/AlexYeomanAQ/TetraClashServer/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		obslog.L().Fatal("store init error", zap.Error(err))
	}

	srv := server.New(cfg, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Queue().Run(ctx, cfg.PairInterval)

	if cfg.WSListenAddr != "" {
		go func() {
			if err := srv.ListenAndServeWS(ctx); err != nil {
				obslog.L().Error("ws server error", zap.Error(err))
			}
		}()
	}
	if cfg.AdminAddr != "" {
		adm := admin.NewServer(srv.Registry(), srv.Queue(), srv.Index())
		go func() {
			if err := adm.ListenAndServe(ctx, cfg.AdminAddr); err != nil {
				obslog.L().Error("admin server error", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			obslog.L().Error("server error", zap.Error(err))
		}
	}

	cancel()
	time.Sleep(100 * time.Millisecond)
	if err := st.Close(); err != nil {
		obslog.L().Warn("store close error", zap.Error(err))
	}
}

func openStore(cfg *appcfg.AppConfig) (store.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		return store.NewPostgres(cfg.DatabaseURL)
	case "redis":
		return store.NewRedis(cfg.RedisURL)
	default:
		return store.NewMemory(), nil
	}
}
