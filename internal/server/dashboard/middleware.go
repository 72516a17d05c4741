package dashboard

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/audit"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxUser  = "user"
	ctxToken = "session_token"
)

type renderMode int

const (
	renderJSON renderMode = iota
	renderHTML
)

func withOrigin(c *gin.Context) {
	ctx := audit.WithOrigin(c.Request.Context(), audit.Origin{
		Transport:  "http",
		RemoteAddr: c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// withRequestID tags the request context with a request id, reusing the
// caller's X-Request-ID when it is short enough, and echoes it back.
func withRequestID(c *gin.Context) {
	id := c.GetHeader(common.RequestIDHeaderName)
	if id == "" || len(id) > common.MaxRequestIDLength {
		id = uuid.NewString()
	}
	c.Header(common.RequestIDHeaderName, id)
	c.Request = c.Request.WithContext(logging.WithFields(c.Request.Context(), "request_id", id))
	c.Next()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error(c.Request.Context(), "panic in handler", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
	})
}

// sealedToken returns the sealed session token from the cookie or, failing
// that, from an Authorization: Bearer header.
func sealedToken(c *gin.Context) string {
	if v, err := c.Cookie(common.SessionCookieName); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// requireSession validates the caller's session and stores the user and raw
// token in the gin context.
func (s *Server) requireSession(mode renderMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, err := s.deps.Sealer.Open(sealedToken(c))
		if err != nil {
			s.fail(c, mode, err)
			return
		}

		user, err := s.deps.Sessions.ValidateSession(ctx, token)
		if err != nil {
			if _, cookieErr := c.Cookie(common.SessionCookieName); cookieErr == nil {
				s.clearCookie(c)
			}
			s.fail(c, mode, err)
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	u, _ := c.MustGet(ctxUser).(*models.User)
	return u
}

func (s *Server) setCookie(c *gin.Context, sealed string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.SessionCookieName, sealed, int(s.deps.Sessions.Lifetime().Seconds()), "/", "", c.Request.TLS != nil, true)
}

func (s *Server) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.SessionCookieName, "", -1, "/", "", c.Request.TLS != nil, true)
}
