package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func runMiddleware(t *testing.T, inbound string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	if inbound != "" {
		c.Request.Header.Set(Header, inbound)
	}

	Middleware()(c)
	return c, rec
}

func TestMiddlewareKeepsSaneInboundID(t *testing.T) {
	c, rec := runMiddleware(t, "proxy-abc123")

	assert.Equal(t, "proxy-abc123", Value(c))
	assert.Equal(t, "proxy-abc123", rec.Header().Get(Header))
}

func TestMiddlewareGeneratesIDWhenMissing(t *testing.T) {
	c, rec := runMiddleware(t, "")

	id := Value(c)
	assert.True(t, strings.HasPrefix(id, "el-"))
	assert.Equal(t, id, rec.Header().Get(Header))
}

func TestMiddlewareReplacesHostileInboundID(t *testing.T) {
	cases := []string{
		"has space",
		"inject\nline",
		strings.Repeat("a", 65),
	}
	for _, inbound := range cases {
		c, _ := runMiddleware(t, inbound)
		assert.NotEqual(t, inbound, Value(c), "inbound %q", inbound)
		assert.True(t, strings.HasPrefix(Value(c), "el-"))
	}
}
