package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"studio_reminder_service/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Server exposes the reminder run trigger over HTTP. The external scheduler
// (or an operator) calls POST /api/reminders/run with the shared key; the
// request is rejected before any repository access when the key is wrong.
type Server struct {
	engine    *gin.Engine
	runner    app.ReminderRunner
	runnerKey string
	logger    *logrus.Logger
}

func NewServer(runner app.ReminderRunner, runnerKey string, logger *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		runner:    runner,
		runnerKey: runnerKey,
		logger:    logger,
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST("/api/reminders/run", s.handleRun)
	// GET kept for manual runs from a browser, same contract as POST.
	engine.GET("/api/reminders/run", s.handleRun)

	return s
}

func (s *Server) handleRun(c *gin.Context) {
	key := c.GetHeader("X-Reminder-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.runnerKey)) != 1 {
		s.logger.Warnf("Rejected reminder run trigger from %s: bad or missing X-Reminder-Key", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := s.runner.Run(c.Request.Context(), time.Now())
	if err != nil {
		s.logger.Errorf("Reminder run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Handler returns the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	s.logger.Infof("HTTP API listening on %s", addr)
	return s.engine.Run(addr)
}
