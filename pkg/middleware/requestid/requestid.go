package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// Header carries the request ID on both the request and the response,
	// so gateway logs can be correlated with reverse-proxy access logs.
	Header = "X-Request-ID"

	contextKey = "request_id"

	// Inbound IDs longer than this are replaced instead of echoed, so a
	// caller cannot inject arbitrary payloads into log lines.
	maxInboundLen = 64
)

// Middleware assigns a request ID to each incoming HTTP request. A sane
// caller-supplied ID is kept; anything else is replaced with a generated one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(Header)
		if !valid(reqID) {
			reqID = generateID()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(Header, reqID)

		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func valid(id string) bool {
	if id == "" || len(id) > maxInboundLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func generateID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err == nil {
		return "el-" + hex.EncodeToString(buf)
	}

	return fmt.Sprintf("el-%d", time.Now().UnixNano())
}
