package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/server/datasource"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// wantsJSON reports whether the caller speaks JSON rather than HTML forms.
func wantsJSON(c *gin.Context) bool {
	return c.ContentType() == binding.MIMEJSON || strings.Contains(c.GetHeader("Accept"), binding.MIMEJSON)
}

func modeOf(c *gin.Context) renderMode {
	if wantsJSON(c) {
		return renderJSON
	}
	return renderHTML
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data_source": s.deps.Source.Name()})
}

func (s *Server) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (s *Server) login(c *gin.Context) {
	mode := modeOf(c)

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		s.fail(c, mode, fmt.Errorf("%w: malformed login request", common.ErrInvalidInput))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.deps.LoginTimeout)
	defer cancel()

	sess, err := s.deps.Sessions.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		s.fail(c, mode, err)
		return
	}

	sealed, err := s.deps.Sealer.Seal(sess.Token)
	if err != nil {
		s.fail(c, mode, err)
		return
	}
	s.setCookie(c, sealed)

	if mode == renderJSON {
		c.JSON(http.StatusOK, gin.H{"token": sealed, "expires_at": sess.ExpiresAt})
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (s *Server) logout(c *gin.Context) {
	ctx := c.Request.Context()

	if token, err := s.deps.Sealer.Open(sealedToken(c)); err == nil {
		if err := s.deps.Sessions.InvalidateSession(ctx, token); err != nil {
			s.fail(c, modeOf(c), err)
			return
		}
	}
	s.clearCookie(c)

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

type tableView struct {
	Title   string
	Table   *datasource.Table
	Error   string
	Warning string
}

func (s *Server) fetchView(ctx context.Context, title, dataset, emptyMsg string) tableView {
	v := tableView{Title: title}
	t, err := s.deps.Source.FetchRows(ctx, datasource.Query{Dataset: dataset})
	switch {
	case err != nil:
		s.logger.Error(ctx, "dashboard data fetch failed", "dataset", dataset, "source", s.deps.Source.Name(), "error", err)
		v.Error = msgSourceUnavailable
	case t.Empty():
		v.Warning = emptyMsg
	default:
		v.Table = t
	}
	return v
}

func (s *Server) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"User": user.Name(),
		"Tables": []tableView{
			s.fetchView(ctx, "Sales Data", datasource.DatasetSales, "No sales data available."),
			s.fetchView(ctx, "Customer Data", datasource.DatasetCustomers, "No customer data available."),
		},
	})
}

func (s *Server) me(c *gin.Context) {
	u := currentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"user_id":      u.ID,
		"username":     u.UserName,
		"display_name": u.Name(),
		"email":        u.Email,
	})
}

func (s *Server) dataset(c *gin.Context) {
	q := datasource.Query{Dataset: c.Param("name")}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, renderJSON, fmt.Errorf("%w: limit must be a non-negative integer", common.ErrInvalidInput))
			return
		}
		q.Limit = n
	}

	t, err := s.deps.Source.FetchRows(c.Request.Context(), q)
	if err != nil {
		s.fail(c, renderJSON, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) revokeAll(c *gin.Context) {
	u := currentUser(c)
	n, err := s.deps.Sessions.InvalidateAllSessions(c.Request.Context(), u.ID)
	if err != nil {
		s.fail(c, renderJSON, err)
		return
	}
	s.clearCookie(c)
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

type passwordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, renderJSON, fmt.Errorf("%w: old_password and new_password are required", common.ErrInvalidInput))
		return
	}

	u := currentUser(c)
	if err := s.deps.Passwords.ChangePassword(c.Request.Context(), u.ID, req.OldPassword, req.NewPassword); err != nil {
		s.fail(c, renderJSON, err)
		return
	}
	s.clearCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}
