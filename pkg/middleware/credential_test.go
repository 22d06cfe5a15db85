package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBearerCredentialSources(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{
			name:  "header",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer hdr") },
			want:  "hdr",
		},
		{
			name:  "header is case insensitive",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer hdr2") },
			want:  "hdr2",
		},
		{
			name:  "cookie",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: "ck"}) },
			want:  "ck",
		},
		{
			name: "header wins over query",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer hdr")
				q := r.URL.Query()
				q.Set("access_token", "qs")
				r.URL.RawQuery = q.Encode()
			},
			want: "hdr",
		},
		{
			name:  "non bearer scheme ignored",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/stream/x", nil)
			tt.setup(r)
			assert.Equal(t, tt.want, BearerCredential(r))
		})
	}
}

func TestExtractCredentialQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var got string
	r.GET("/x", ExtractCredential(), func(c *gin.Context) {
		got = GetCredential(c)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?access_token=qs", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "qs", got)
}
