package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/session"
)

// Answerer runs one query through the pipeline.
type Answerer interface {
	Answer(ctx context.Context, q models.Query) (*models.Answer, error)
}

// Server exposes the pipeline and the session store over HTTP.
type Server struct {
	pipeline Answerer
	sessions session.Store
	cfg      config.ServerConfig
	engine   *gin.Engine
}

func New(pipeline Answerer, sessions session.Store, cfg *config.ServerConfig) *Server {
	s := &Server{
		pipeline: pipeline,
		sessions: sessions,
		cfg:      *cfg,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), corsMiddleware(cfg.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/authenticate", s.Authenticate)
	r.POST("/query", s.Query)

	r.GET("/sessions", s.ListSessions)
	r.GET("/session_history", s.SessionHistory)
	r.POST("/update_star_status", s.UpdateStarStatus)
	r.POST("/delete_session", s.DeleteSession)
	r.POST("/rename_session", s.RenameSession)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

// corsMiddleware answers browser preflights. With no origins configured every
// origin is allowed.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}
