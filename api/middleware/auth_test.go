package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func keyedEngine(keys ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireKey(keys))
	r.GET("/progress", func(c *gin.Context) {
		key, _ := c.Get(ContextKey)
		c.String(http.StatusOK, "%v", key)
	})
	return r
}

func TestRequireKey(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		header   map[string]string
		wantCode int
		wantKey  string
	}{
		{"open without keys", nil, nil, http.StatusOK, "<nil>"},
		{"missing", []string{"a"}, nil, http.StatusUnauthorized, ""},
		{"wrong", []string{"a"}, map[string]string{"X-API-Key": "b"}, http.StatusUnauthorized, ""},
		{"second key", []string{"a", "b"}, map[string]string{"X-API-Key": "b"}, http.StatusOK, "b"},
		{"bearer wins", []string{"a", "b"}, map[string]string{"Authorization": "Bearer a", "X-API-Key": "b"}, http.StatusOK, "a"},
		{"prefix is not a key", []string{"abc"}, map[string]string{"X-API-Key": "ab"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/progress", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			keyedEngine(tt.keys...).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if w.Code == http.StatusUnauthorized {
				if got := w.Header().Get("WWW-Authenticate"); got != authRealm {
					t.Errorf("WWW-Authenticate = %q", got)
				}
				return
			}
			if got := w.Body.String(); got != tt.wantKey {
				t.Errorf("stored key = %q, want %q", got, tt.wantKey)
			}
		})
	}
}
