package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lexiroute/lexiroute/internal/apperr"
	"github.com/lexiroute/lexiroute/internal/logging"
)

// translateRequest is the body of POST /v1/translate.
type translateRequest struct {
	Text         string `json:"text"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// translateResponse is the success body of POST /v1/translate.
type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": err.Error()}})
		return
	}
	rt := s.Runtime()
	translated, err := rt.Dispatcher.Translate(c.Request.Context(), req.Text, req.SystemPrompt)
	if err != nil {
		status, code := classifyDispatchError(err)
		c.JSON(status, gin.H{"error": gin.H{"code": code, "message": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, translateResponse{TranslatedText: translated})
}

// classifyDispatchError maps the dispatch error taxonomy onto HTTP statuses.
func classifyDispatchError(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		// Client went away; 499 in the nginx tradition.
		return 499, "request_cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request_timeout"
	}
	var cfgErr *apperr.ConfigError
	if errors.As(err, &cfgErr) {
		return http.StatusServiceUnavailable, "no_endpoints"
	}
	var exhausted *apperr.ExhaustedError
	if errors.As(err, &exhausted) {
		return http.StatusBadGateway, "translation_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (s *Server) handleEndpoints(c *gin.Context) {
	rt := s.Runtime()
	c.JSON(http.StatusOK, gin.H{"endpoints": rt.Pool.Snapshots()})
}

func (s *Server) handleResetEndpoint(c *gin.Context) {
	rt := s.Runtime()
	id := c.Param("id")
	if !rt.Pool.ResetStats(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "endpoint_not_found", "message": "unknown endpoint " + id}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset", "id": id})
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logging.Buffer.Recent(limit)})
}

func (s *Server) handleUsage(c *gin.Context) {
	if s.usage == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "usage_disabled", "message": "request logging is disabled"}})
		return
	}
	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_since", "message": "since must be RFC3339"}})
			return
		}
		since = parsed
	}
	summary, err := s.usage.Summary(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "usage_query_failed", "message": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": summary})
}
