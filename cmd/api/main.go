package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pricetracker/internal/config"
	"pricetracker/internal/fetch"
	"pricetracker/internal/httpapi"
	apimw "pricetracker/internal/httpapi/middleware"
	"pricetracker/internal/logging"
	"pricetracker/internal/notify"
	"pricetracker/internal/repo"
	"pricetracker/internal/repo/file"
	"pricetracker/internal/repo/postgres"
	"pricetracker/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store repo.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		store = pg
		logger.Info("store_selected", zap.String("kind", "postgres"))
	} else {
		fs, err := file.New(cfg.DataDir)
		if err != nil {
			logger.Fatal("file_store_failed", zap.Error(err), zap.String("dir", cfg.DataDir))
		}
		store = fs
		logger.Info("store_selected", zap.String("kind", "file"), zap.String("dir", cfg.DataDir))
	}

	var notifiers notify.Multi
	if m := notify.NewMailer(cfg.SMTP, cfg.MailTo); m != nil {
		notifiers = append(notifiers, m)
		logger.Info("mail_notifier_enabled", zap.String("to", cfg.MailTo))
	}
	if sl := notify.NewSlack(cfg.SlackWebhook); sl != nil {
		notifiers = append(notifiers, sl)
		logger.Info("slack_notifier_enabled")
	}
	if len(notifiers) == 0 {
		logger.Warn("no_notifiers_configured")
	}

	fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout)
	engine := tracker.NewEngine(logger, store, fetcher, notifiers, cfg.FetchTimeout, cfg.Concurrency)
	if err := engine.Load(ctx); err != nil {
		logger.Fatal("load_failed", zap.Error(err))
	}

	poller := tracker.NewPoller(logger, engine, cfg.PollInterval, cfg.PollCron)
	go poller.Run(ctx)

	api := httpapi.NewServer(logger, engine)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.Router(keys, cfg.RateRPM, cfg.RateBurst),
	}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_serve_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", zap.Error(err))
	}
}
