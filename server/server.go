// Package server exposes the proxy over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"llm_proxy/embedding"
	"llm_proxy/proxy"
	"llm_proxy/requestlog"
	"llm_proxy/upstream"
)

// Analytics is the aggregate view handed to the usage endpoint.
type Analytics interface {
	ProjectTotals(ctx context.Context, projectID string) (requestlog.Totals, error)
}

// Server wires the orchestrator into gin routes.
type Server struct {
	orch      *proxy.Orchestrator
	analytics Analytics
	logger    *zap.Logger
}

// New creates the HTTP server. analytics may be nil when no aggregate
// endpoint is wanted.
func New(orch *proxy.Orchestrator, analytics Analytics, logger *zap.Logger) *Server {
	return &Server{orch: orch, analytics: analytics, logger: logger}
}

// Router builds the gin engine with all routes registered. gatherer backs
// the /metrics endpoint.
func (s *Server) Router(gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/api/proxy", s.handleProxy)
	router.DELETE("/api/cache/:projectId", s.handlePurge)
	if s.analytics != nil {
		router.GET("/api/analytics/:projectId/totals", s.handleTotals)
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return router
}

type proxyRequest struct {
	UpstreamEndpoint string          `json:"upstreamEndpoint" binding:"required"`
	CustomerEndpoint string          `json:"customerEndpoint"`
	ProjectID        string          `json:"projectId" binding:"required"`
	Payload          json.RawMessage `json:"payload" binding:"required"`
}

func (s *Server) handleProxy(c *gin.Context) {
	var body proxyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: upstreamEndpoint, payload, projectId"})
		return
	}

	resp, err := s.orch.Handle(c.Request.Context(), &proxy.Request{
		UpstreamEndpoint: body.UpstreamEndpoint,
		CustomerEndpoint: body.CustomerEndpoint,
		ProjectID:        body.ProjectID,
		Payload:          body.Payload,
		Headers:          c.Request.Header,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	if resp.CacheHit {
		c.Header("X-Cache-Status", "HIT")
	} else {
		c.Header("X-Cache-Status", "MISS")
	}
	c.Data(resp.Status, "application/json", resp.Body)
}

func (s *Server) handlePurge(c *gin.Context) {
	projectID := c.Param("projectId")

	removed, err := s.orch.Purge(c.Request.Context(), projectID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projectId": projectID, "removed": removed})
}

func (s *Server) handleTotals(c *gin.Context) {
	projectID := c.Param("projectId")

	totals, err := s.analytics.ProjectTotals(c.Request.Context(), projectID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, proxy.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, upstream.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "upstream timeout"})
	case errors.Is(err, upstream.ErrUnreachable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unreachable"})
	case errors.Is(err, embedding.ErrModelUnavailable), errors.Is(err, proxy.ErrEmbeddingFailed):
		s.logger.Error("embedding subsystem failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "embedding unavailable"})
	default:
		s.logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
