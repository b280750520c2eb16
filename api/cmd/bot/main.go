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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"ll-buddy/api/internal/bot"
	"ll-buddy/api/internal/completion"
	"ll-buddy/api/internal/config"
	"ll-buddy/api/internal/httpserver"
	"ll-buddy/api/internal/logger"
	"ll-buddy/api/internal/metrics"
	"ll-buddy/api/internal/pipeline"
	"ll-buddy/api/internal/prompts"
	"ll-buddy/api/internal/telegram"
)

func main() {
	dotenv := os.Getenv("DOTENV_FILE")
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := config.LoadDotEnv(dotenv); err != nil {
		log.Fatalf("config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	store, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		lg.Fatal("prompts", "error", err, "file", cfg.PromptsFile)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ai := completion.New(completion.Config{
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.OpenAIModel,
		BaseURL:        cfg.OpenAIBaseURL,
		ConnectTimeout: cfg.OpenAIConnectTimeout,
		RequestTimeout: cfg.OpenAIRequestTimeout,
		TotalTimeout:   cfg.OpenAITotalTimeout,
	}, store, lg, m)

	// клиент должен пережить long poll
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint,
		&http.Client{Timeout: cfg.PollTimeout + 30*time.Second})
	if err != nil {
		lg.Fatal("telegram auth", "error", telegram.RedactError(err))
	}
	api.Debug = false
	lg.Info("telegram authorized", "bot", api.Self.UserName, "model", ai.Model(), "allowed_users", len(cfg.AllowedUsers))

	transport := telegram.NewTransport(api, cfg.InlineImages, cfg.DownloadTimeout, lg)
	photos := pipeline.New(ai, transport, lg, m)
	router := telegram.NewRouter(telegram.Dispatcher{Allowed: cfg.AllowedUsers}, transport, photos, lg, m)
	worker := telegram.NewWorker(api, router, cfg.PollTimeout, cfg.PipelineMaxConcurrency, lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := bot.NewController(ctx, worker.Run, lg, m)
	if cfg.Autostart {
		ctrl.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h := httpserver.NewRouter(ctrl, reg, lg)
		return httpserver.Serve(gctx, "0.0.0.0:"+cfg.Port, h, cfg.ShutdownTimeout, lg)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := ctrl.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		lg.Error("exit", "error", err)
		lg.Sync()
		os.Exit(1)
	}
	lg.Info("bye")
}
