package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"taskvault/internal/apierr"
	"taskvault/internal/auth"
	"taskvault/internal/models"
	"taskvault/pkg/logger"
)

const principalKey = "principal"

// Auth is the authentication gate: verifies the bearer credential and
// attaches the principal to the request. No route behind it runs
// without a valid token.
func Auth(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			_ = c.Error(apierr.Unauthenticated("Authentication required"))
			c.Abort()
			return
		}
		p, err := issuer.Verify(strings.TrimSpace(header[len(prefix):]))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// Principal returns the authenticated principal set by Auth.
func Principal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// SecurityHeaders sets the standard security response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		c.Next()
	}
}

// ErrorFormatter is the single place errors become responses. Handlers
// record failures with c.Error and return; this middleware renders the
// {message, errors?} envelope from the error's kind. Internal causes
// are logged server-side and never shown to clients.
func ErrorFormatter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		e := apierr.From(c.Errors.Last().Err)
		if e.Kind == apierr.KindInternal {
			logger.Error(c.Request.Context(), "Request failed",
				"method", c.Request.Method, "path", c.FullPath(), "error", e.Err)
		}
		body := gin.H{"message": e.Message}
		if len(e.Fields) > 0 {
			body["errors"] = e.Fields
		}
		c.JSON(e.Status(), body)
	}
}
