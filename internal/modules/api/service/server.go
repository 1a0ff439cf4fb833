package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"signal_bot/internal/models"
	"signal_bot/internal/runner/filter"
	"signal_bot/internal/runner/sessions"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Positions lists the futures position book.
type Positions interface {
	Snapshot() []filter.Transition
}

// Filter lists the alert filter memory.
type Filter interface {
	Snapshot() []filter.AssetState
}

// State exposes the operator-controlled system state.
type State interface {
	Get() models.SystemState
}

type Deps struct {
	Sessions  *sessions.Manager
	Positions Positions
	Filter    Filter
	State     State
	Auth      *Auth
	Hub       *Hub
}

// Server is the read-mostly admin API.
type Server struct {
	engine *gin.Engine
	d      Deps
	// ctx ends long-lived feed connections on shutdown.
	ctx context.Context
}

func NewServer(ctx context.Context, origins []string, d Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	s := &Server{engine: engine, d: d, ctx: ctx}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	v1 := s.engine.Group("/api/v1", s.d.Auth.Middleware())
	v1.GET("/sessions", s.handleSessions)
	v1.PUT("/sessions/:id/mode", s.handleSetMode)
	v1.GET("/positions", s.handlePositions)
	v1.GET("/filter", s.handleFilter)
	v1.GET("/state", s.handleState)
	v1.GET("/feed", s.handleFeed)
}

func (s *Server) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.d.Sessions.Views()})
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (s *Server) handleSetMode(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad session id"})
		return
	}
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.d.Sessions.Get(chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := sess.SetMode(req.Mode); err != nil {
		writeError(c, err)
		return
	}
	if err := s.d.Sessions.Save(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.d.Positions.Snapshot()})
}

func (s *Server) handleFilter(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assets": s.d.Filter.Snapshot()})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.d.State.Get())
}

func (s *Server) handleFeed(c *gin.Context) {
	s.d.Hub.Serve(s.ctx, c.Writer, c.Request)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConfigValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrExternalCall):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
