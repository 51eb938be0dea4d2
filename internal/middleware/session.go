package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ethicsline/ethicsline-api/internal/models"
	"github.com/ethicsline/ethicsline-api/internal/service"
	"github.com/ethicsline/ethicsline-api/pkg/response"
)

// SessionHeader carries the reporter session identifier.
const SessionHeader = "X-Session-ID"

// ContextSessionKey is the gin context key storing the reporter session.
const ContextSessionKey = "reporterSession"

// RequireSession resolves the reporter session from the request header and
// aborts when none exists. Reporter write routes sit behind this.
func RequireSession(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessions.Require(c.Request.Context(), c.GetHeader(SessionHeader))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

// SessionFromContext returns the resolved reporter session, if any.
func SessionFromContext(c *gin.Context) *models.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}
