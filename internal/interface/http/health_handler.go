package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "pong",
		"timestamp": time.Now().Unix(),
		"status":    "alive",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	dbStatus := "using_memory"
	if s.app.DB != nil {
		dbStatus = "ok"
		if err := s.app.Ping(c.Request.Context()); err != nil {
			dbStatus = "error: " + err.Error()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"health":  "ok",
		"db":      dbStatus,
		"source":  s.app.Source(),
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"time":    time.Now().Format(time.RFC3339),
	})
}
