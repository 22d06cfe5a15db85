package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CredentialKey   = "credential"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
	AccessTokenName = "access_token"
)

// ExtractCredential stores the caller's bearer credential in the gin
// context. It never rejects; handlers decide whether a missing
// credential is fatal so they can validate their own inputs first.
func ExtractCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		if cred := BearerCredential(c.Request); cred != "" {
			c.Set(CredentialKey, cred)
		}
		c.Next()
	}
}

// GetCredential returns the credential stored by ExtractCredential.
func GetCredential(c *gin.Context) string {
	if v, ok := c.Get(CredentialKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// BearerCredential looks for an opaque bearer credential in the
// Authorization header, then the access_token cookie, then the
// access_token query parameter. Players loading a <video src> cannot set
// headers, which is why the latter two exist.
func BearerCredential(r *http.Request) string {
	if h := r.Header.Get(AuthHeaderKey); h != "" {
		if len(h) > len(BearerPrefix) && strings.EqualFold(h[:len(BearerPrefix)], BearerPrefix) {
			return strings.TrimSpace(h[len(BearerPrefix):])
		}
	}
	if ck, err := r.Cookie(AccessTokenName); err == nil && ck.Value != "" {
		return ck.Value
	}
	return strings.TrimSpace(r.URL.Query().Get(AccessTokenName))
}
