package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskd/models"
)

const ownerKey = "owner"

// loggerMiddleware logs one line per request. The query string is left out
// so access tokens never reach the log.
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := s.logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if owner := c.GetString(ownerKey); owner != "" {
			entry = entry.WithField("owner", owner)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}

// authMiddleware resolves the API key to its owner. EventSource and iframes
// cannot set headers, so the key is also accepted as ?access_token=.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("access_token")

		if auth := c.GetHeader("Authorization"); auth != "" {
			// Extract token from "Bearer <token>"
			parts := strings.Split(auth, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				abortError(c, http.StatusUnauthorized, models.CodeUnauthorized, "invalid authorization format", "")
				return
			}
			token = parts[1]
		}

		if token == "" {
			abortError(c, http.StatusUnauthorized, models.CodeUnauthorized, "missing authorization header", "")
			return
		}

		owner := s.config.OwnerForKey(token)
		if owner == "" {
			abortError(c, http.StatusUnauthorized, models.CodeUnauthorized, "invalid API key", "")
			return
		}

		c.Set(ownerKey, owner)
		c.Next()
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}
