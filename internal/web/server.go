package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"viral-music-bot/internal/cache"
)

// BotStatus reports whether the Telegram poller is alive.
type BotStatus interface {
	Running() bool
}

type Server struct {
	engine *gin.Engine
	stats  cache.StatsSource
	bot    BotStatus
	log    *logrus.Logger
	now    func() time.Time
	addr   string
}

func NewServer(port int, stats cache.StatsSource, bot BotStatus, log *logrus.Logger) *Server {
	s := &Server{
		engine: gin.New(),
		stats:  stats,
		bot:    bot,
		log:    log,
		now:    time.Now,
		addr:   fmt.Sprintf(":%d", port),
	}

	s.engine.Use(gin.Recovery(), RequestID(), AccessLog(log))
	s.engine.GET("/", s.home)
	s.engine.GET("/health", s.health)
	s.engine.GET("/keepalive", s.keepalive)
	s.engine.GET("/stats", s.aggregateStats)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.addr).Info("web server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	s.log.Info("web server stopped")
	return nil
}

func (s *Server) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Viral Music Bot",
		"message": "Bot is running in background",
		"endpoints": gin.H{
			"/":          "This page",
			"/health":    "Health check",
			"/keepalive": "Prevent spin-down",
			"/stats":     "Aggregate statistics",
		},
	})
}

func (s *Server) health(c *gin.Context) {
	status := "stopped"
	if s.bot != nil && s.bot.Running() {
		status = "running"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"bot":       status,
		"timestamp": float64(s.now().UnixMilli()) / 1000,
	})
}

func (s *Server) keepalive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "awake",
		"message": "Instance kept alive",
	})
}

func (s *Server) aggregateStats(c *gin.Context) {
	st, err := s.stats.AggregateStats(c.Request.Context())
	if err != nil {
		s.log.WithField("request_id", c.GetString(requestIDKey)).WithError(err).Error("failed to load stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, st)
}
