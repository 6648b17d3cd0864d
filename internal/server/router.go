package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vasilisp/autopost/internal/auth"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/pkg/api"
)

const requestIDHeader = "X-Request-ID"

func Router(h *Handler, gate *auth.JWTGate, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(logger.OrNop(log)))

	r.GET(api.HealthPath, h.health)

	group := r.Group("/api", gate.Middleware())
	group.POST(strings.TrimPrefix(api.PostsPath, "/api"), h.generate)
	group.GET(strings.TrimPrefix(api.PostsPath, "/api"), h.listPosts)
	group.POST(strings.TrimPrefix(api.PostLinksPath, "/api"), h.acceptLinks)
	group.POST(strings.TrimPrefix(api.RefreshPreviewPath, "/api"), h.previewRefresh)
	group.POST(strings.TrimPrefix(api.RefreshCommitPath, "/api"), h.commitRefresh)
	group.GET(strings.TrimPrefix(api.AuthorsPath, "/api"), h.authors)
	group.GET(strings.TrimPrefix(api.UpdatesPath, "/api"), h.updates)

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		}
		if userID := auth.UserID(c.Request.Context()); userID != 0 {
			fields = append(fields, "user_id", userID)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
