package httpapi

import "github.com/gin-gonic/gin"

func (s *Server) registerRoutes() {
	r := s.engine
	r.Use(gin.Recovery(), requestID(), s.ginLogger(), s.metricsMiddleware(), corsMiddleware())

	api := r.Group("/api")
	api.GET("/ping", s.handlePing)
	api.GET("/health", s.handleHealth)
	api.POST("/auth/token", s.handleToken)

	analysis := api.Group("/analysis", s.requireAuth())
	analysis.POST("/analog", s.handleAnalog)
	analysis.POST("/regime", s.handleRegime)
	analysis.POST("/batch", s.handleBatch)

	if s.cfg.Metrics.Enabled {
		r.GET(s.cfg.Metrics.Path, gin.WrapH(s.app.Metrics.Handler()))
	}
}
