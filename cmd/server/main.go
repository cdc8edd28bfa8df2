package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/config"
	"github.com/ECeternalcat/simple-talk-client/internal/db"
	clog "github.com/ECeternalcat/simple-talk-client/internal/log"
	"github.com/ECeternalcat/simple-talk-client/internal/server"
	"github.com/ECeternalcat/simple-talk-client/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	// 单次触发的停机协调器:管理员指令和系统信号走同一条路径,
	// 第二次触发是空操作。
	shutdownCh := make(chan struct{})
	var once sync.Once
	trigger := func() { once.Do(func() { close(shutdownCh) }) }

	presence := ws.NewPresence()
	registry := ws.NewRegistry()
	d := ws.NewDispatcher(gdb, presence, registry, cfg.File, trigger)
	r, limiter := server.SetupRouter(cfg, d)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-shutdownCh:
	case <-sig:
		trigger()
	}

	log.Info().Msg("graceful shutdown initiated")
	limiter.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	// websocket 连接不受 http.Server.Shutdown 管辖,逐个断开触发会话清理。
	for _, c := range presence.Clients() {
		c.Close()
	}
	log.Info().Msg("server stopped")
}
