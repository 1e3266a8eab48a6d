package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/auth/password"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      userProfile `json:"user"`
}

type userProfile struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	EmployeeID   *string `json:"employee_id"`
	DepartmentID *string `json:"department_id"`
}

func profileOf(actor authdomain.Actor) userProfile {
	p := userProfile{
		ID:    actor.UserID.String(),
		Name:  actor.Name,
		Email: actor.Email,
		Role:  actor.Role,
	}
	if actor.EmployeeID != nil {
		v := actor.EmployeeID.String()
		p.EmployeeID = &v
	}
	if actor.DepartmentID != nil {
		v := actor.DepartmentID.String()
		p.DepartmentID = &v
	}
	return p
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	actor := authdomain.ActorFromUser(result.User)
	userID := actor.UserID.String()
	if err := s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		CompanyID:  actor.CompanyID,
		ActorType:  string(auditdomain.ActorTypeUser),
		ActorID:    userID,
		Action:     auditdomain.ActionUserLogin,
		TargetType: "user",
		TargetID:   userID,
		Metadata:   map[string]any{"email": email},
	}); err != nil {
		s.log.Warn("audit login failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"data": loginResponse{
		Token:     result.RawToken,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
		User:      profileOf(actor),
	}})
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
			s.log.Debug("logout with stale session", zap.Error(err))
		}
	}
	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

// Me returns the profile of the signed-in user.
func (s *Server) Me(c *gin.Context) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profileOf(actor)})
}

func (s *Server) ChangePassword(c *gin.Context) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(strings.TrimSpace(req.NewPassword)) < 8 {
		AbortWithError(c, newValidationError("new_password", validation.CodeTooShort, "new_password must be at least 8 characters"))
		return
	}

	user, err := s.authsvc.GetUser(c.Request.Context(), actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if user.PasswordHash == nil || !password.Verify(req.CurrentPassword, *user.PasswordHash) {
		AbortWithError(c, newValidationError("current_password", validation.CodeInvalid, "current_password is incorrect"))
		return
	}

	var keep snowflake.ID
	if v, ok := c.Get(contextSessionIDKey); ok {
		keep, _ = v.(snowflake.ID)
	}
	if err := s.authsvc.ChangePassword(c.Request.Context(), actor.UserID, keep, req.NewPassword); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
