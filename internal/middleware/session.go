// Package middleware provides the gin middleware of the cart service.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
)

const (
	sessionIDKey = "session_id"
	clientIDKey  = "client_id"
	csrfTokenKey = "csrf_token"

	// UserIDHeader is set by the upstream auth gateway.
	UserIDHeader = "X-User-ID"
)

// Session issues the session cookie on first contact and stores the session
// id in the gin context. Values that are not UUIDs are replaced.
func Session(cfg config.SessionConfig) gin.HandlerFunc {
	maxAge := int(cfg.TTL.Seconds())
	return func(c *gin.Context) {
		sid, err := c.Cookie(cfg.CookieName)
		if err != nil || !validToken(sid) {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cfg.CookieName, sid, maxAge, "/", "", cfg.SecureCookie, true)
		}
		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

// CSRFFormField carries the token in form posts that cannot set headers,
// such as the payment hand-off form.
const CSRFFormField = "csrfmiddlewaretoken"

// CSRF implements the double-submit cookie check. The token cookie is issued
// when absent; unsafe methods must echo it in the configured header or, for
// form posts, in CSRFFormField.
func CSRF(cfg config.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cfg.CSRFCookie)
		if err != nil || !validToken(token) {
			token = ""
		}

		if !safeMethod(c.Request.Method) {
			sent := c.GetHeader(cfg.CSRFHeader)
			if sent == "" && formBody(c) {
				sent = c.PostForm(CSRFFormField)
			}
			if token == "" || sent == "" || subtle.ConstantTimeCompare([]byte(token), []byte(sent)) != 1 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CSRF token missing or incorrect"})
				return
			}
		}

		if token == "" {
			token = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			// Readable by page scripts, which copy it into the header.
			c.SetCookie(cfg.CSRFCookie, token, 0, "/", "", cfg.SecureCookie, false)
		}
		c.Set(csrfTokenKey, token)
		c.Next()
	}
}

// RequireUser rejects requests without a client identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader(UserIDHeader)
		if clientID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(clientIDKey, clientID)
		c.Next()
	}
}

// SessionID returns the session id set by Session.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// ClientID returns the client id set by RequireUser.
func ClientID(c *gin.Context) string {
	return c.GetString(clientIDKey)
}

// CSRFToken returns the token the client must echo on unsafe requests.
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfTokenKey)
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func formBody(c *gin.Context) bool {
	switch c.ContentType() {
	case binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
		return true
	}
	return false
}

func validToken(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
