package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/courses", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/courses", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/courses", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	w := serve([]string{"https://app.example/"}, http.MethodGet, "https://app.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsPreflightFromUnknownOrigin(t *testing.T) {
	w := serve([]string{"https://app.example"}, http.MethodOptions, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowAllWhenUnconfigured(t *testing.T) {
	w := serve(nil, http.MethodOptions, "https://any.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://any.example", w.Header().Get("Access-Control-Allow-Origin"))
}
