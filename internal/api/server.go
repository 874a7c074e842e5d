// Package api exposes the bot controls over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tradebot/internal/bot"
	"tradebot/internal/metrics"
)

// Controller is the subset of bot.Service the API drives.
type Controller interface {
	Tick(ctx context.Context) bot.Snapshot
	Refresh(ctx context.Context) bot.Snapshot
	CloseAll(ctx context.Context) bot.Snapshot
	SetEmergencyStop(enabled bool) bot.Snapshot
}

// Server wires HTTP endpoints around a Controller.
type Server struct {
	Router *gin.Engine
	bot    Controller
	log    zerolog.Logger
}

type emergencyStopRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// NewServer builds the router.
func NewServer(ctrl Controller, log zerolog.Logger) *Server {
	r := gin.New()
	s := &Server{Router: r, bot: ctrl, log: log.With().Str("component", "api").Logger()}

	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	r.Use(rateLimit(rate.NewLimiter(rate.Limit(20), 50)))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.Router.Group("/api")
	{
		api.GET("/snapshot", s.snapshot)
		api.POST("/tick", s.tick)
		api.POST("/close-all", s.closeAll)
		api.POST("/emergency-stop", s.emergencyStop)
	}
}

// HTTPServer wraps the router for ListenAndServe/Shutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.Refresh(c.Request.Context()))
}

func (s *Server) tick(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.Tick(c.Request.Context()))
}

func (s *Server) closeAll(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.CloseAll(c.Request.Context()))
}

func (s *Server) emergencyStop(c *gin.Context) {
	var req emergencyStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.bot.SetEmergencyStop(*req.Enabled))
}
