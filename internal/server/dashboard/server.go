// Package dashboard serves the browser-facing sales dashboard and its JSON
// API over gin. Every route except /healthz and /login requires a session.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/auth"
	"github.com/dmitrijs2005/salesdash/internal/server/datasource"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// SessionManager is the session API the dashboard relies on.
// *sessions.Manager satisfies it.
type SessionManager interface {
	VerifyCredentials(ctx context.Context, identifier, password string) (*models.Session, error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	InvalidateSession(ctx context.Context, token string) error
	InvalidateAllSessions(ctx context.Context, userID string) (int, error)
	Lifetime() time.Duration
}

// PasswordChanger changes a user's own password. *services.UserService
// satisfies it.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type Deps struct {
	Sessions     SessionManager
	Passwords    PasswordChanger
	Source       datasource.Source
	Sealer       *auth.TokenSealer
	LoginTimeout time.Duration
	Logger       logging.Logger
}

type Server struct {
	addr   string
	deps   Deps
	engine *gin.Engine
	logger logging.Logger
	ln     net.Listener
}

// New builds the dashboard server listening on addr.
func New(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.LoginTimeout <= 0 {
		deps.LoginTimeout = 5 * time.Second
	}

	s := &Server{
		addr:   addr,
		deps:   deps,
		logger: deps.Logger.With("module", "dashboard"),
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	r.Use(withRequestID, s.recovery(), s.requestLogger(), withOrigin)

	r.GET("/healthz", s.healthz)
	r.GET("/login", s.loginPage)
	r.POST("/login", s.login)
	r.POST("/logout", s.logout)

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusSeeOther, "/dashboard") })
	r.GET("/dashboard", s.requireSession(renderHTML), s.dashboard)

	api := r.Group("/api/v1", s.requireSession(renderJSON))
	{
		api.GET("/me", s.me)
		api.GET("/datasets/:name", s.dataset)
		api.POST("/sessions/revoke", s.revokeAll)
		api.POST("/password", s.changePassword)
	}
	return r
}

// Listen binds the listening socket. Run calls it when needed.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "dashboard listening", "addr", s.Addr())
		errCh <- srv.Serve(s.ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "dashboard shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
