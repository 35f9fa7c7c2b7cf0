package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appcfg "github.com/quizarena/quiz-arena/internal/config"
	"github.com/quizarena/quiz-arena/internal/gateway"
	"github.com/quizarena/quiz-arena/internal/match"
	"github.com/quizarena/quiz-arena/internal/obslog"
	"github.com/quizarena/quiz-arena/internal/presence"
	"github.com/quizarena/quiz-arena/internal/quizfeed"
	"github.com/quizarena/quiz-arena/internal/record"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	reg := presence.NewRegistry()
	hub := gateway.NewHub()
	gateway.BindPresence(reg, hub)

	store := match.NewStore(cfg.DrawTimeTolerance)
	coord := match.NewCoordinator(store, hub, cfg.RoomIdleTTL, cfg.FinalizeGrace, cfg.SweepInterval)

	var recorders record.Fanout
	var history gateway.MatchLister
	if cfg.RedisURL != "" {
		rs, err := record.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis record store init error: %v", err)
		}
		defer func() { _ = rs.Close() }()
		recorders = append(recorders, rs)
		history = rs
	}
	if cfg.DatabaseURL != "" {
		pg, err := record.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres record repo init error: %v", err)
		}
		defer func() { _ = pg.Close() }()
		recorders = append(recorders, pg)
	}
	if len(recorders) > 0 {
		coord.AttachRecorder(recorders)
	}

	if cfg.QuizAPIBaseURL != "" {
		headers := func() map[string]string {
			if cfg.QuizAPIToken == "" {
				return nil
			}
			return map[string]string{"Authorization": "Bearer " + cfg.QuizAPIToken}
		}
		coord.AttachQuizSource(quizfeed.NewClient(cfg.QuizAPIBaseURL, quizfeed.WithHeaderProvider(headers)))
	}

	coord.Start()
	defer coord.Stop()

	server := gateway.NewServer(hub, reg, coord)
	if history != nil {
		server.AttachResults(history)
	}
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gateway.NewRouter(server, cfg.WSPath),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		obslog.L().Info("server_listen",
			zap.String("addr", cfg.ListenAddr),
			zap.String("ws_path", cfg.WSPath),
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("server_shutdown", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		obslog.L().Warn("server_shutdown_error", zap.Error(err))
	}
}
