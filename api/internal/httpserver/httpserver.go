package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ll-buddy/api/internal/logger"
)

const (
	startedText        = "Bot started successfully."
	alreadyRunningText = "Bot is already running."
	stoppedText        = "Bot stopped successfully."
	notRunningText     = "Bot was not running."
)

// Controller: управление воркером бота.
type Controller interface {
	Start() bool
	Stop() bool
	Running() bool
}

// NewRouter собирает HTTP-поверхность управления: /bot/start, /bot/stop, /bot/status,
// плюс /healthz и /metrics.
func NewRouter(ctrl Controller, gatherer prometheus.Gatherer, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	bot := r.Group("/bot")
	{
		bot.POST("/start", func(c *gin.Context) {
			if ctrl.Start() {
				c.String(http.StatusOK, startedText)
				return
			}
			c.String(http.StatusOK, alreadyRunningText)
		})
		bot.POST("/stop", func(c *gin.Context) {
			if ctrl.Stop() {
				c.String(http.StatusOK, stoppedText)
				return
			}
			c.String(http.StatusOK, notRunningText)
		})
		bot.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"running": ctrl.Running()})
		})
	}
	return r
}

func requestLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Serve слушает addr до отмены ctx, затем корректно гасит сервер за shutdownTimeout.
func Serve(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
