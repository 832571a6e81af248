package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"servoseq/sequencer/command"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server is the HTTP API
type Server struct {
	bridge    *Bridge
	startTime time.Time
	version   string
}

// NewServer creates a server reading from bridge
func NewServer(bridge *Bridge, version string) *Server {
	return &Server{
		bridge:    bridge,
		startTime: time.Now(),
		version:   version,
	}
}

// NewEngine returns a gin engine with CORS and the API routes installed
func NewEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	s.SetupRoutes(r)
	return r
}

// SetupRoutes registers the v1 routes
func (s *Server) SetupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/status", s.handleStatus)
		v1.GET("/channels", s.handleChannels)
		v1.GET("/channels/:id", s.handleChannel)
		v1.GET("/log", s.handleLog)
		v1.POST("/commands", s.handleCommand)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: gin.H{
			"version": s.version,
			"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		},
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{Status: "success", Data: s.bridge.Snapshot()})
}

func (s *Server) handleChannels(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{Status: "success", Data: s.bridge.Snapshot().Channels})
}

func (s *Server) handleChannel(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{Status: "error", Error: "channel id must be an integer"})
		return
	}
	for _, ch := range s.bridge.Snapshot().Channels {
		if ch.Channel == id {
			c.JSON(http.StatusOK, ApiResponse{Status: "success", Data: ch})
			return
		}
	}
	c.JSON(http.StatusNotFound, ApiResponse{Status: "error", Error: "channel " + c.Param("id") + " has no state"})
}

func (s *Server) handleLog(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{Status: "success", Data: s.bridge.History()})
}

// handleCommand decodes the line up front so malformed commands are rejected
// with 400; range checks happen when the control loop executes it
func (s *Server) handleCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{Status: "error", Error: "invalid request: " + err.Error()})
		return
	}
	line := strings.TrimSpace(req.Line)
	if _, err := command.Decode(line); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{Status: "error", Error: err.Error()})
		return
	}
	if err := s.bridge.Submit(line); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrBusy) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, ApiResponse{Status: "error", Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, ApiResponse{Status: "success", Message: "queued " + line})
}
