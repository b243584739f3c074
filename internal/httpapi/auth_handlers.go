package httpapi

import (
	"net/http"

	"marketgateway/internal/apperr"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// register creates an account and returns a signed-in session
// POST /api/auth/register
func (s *server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	res, err := s.auth.Register(c.Request.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, res)
}

// POST /api/auth/login
func (s *server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	res, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}

// POST /api/auth/refresh
func (s *server) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	tokens, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tokens)
}

// logout only checks the token signature, so logging out twice succeeds.
// POST /api/auth/logout
func (s *server) logout(c *gin.Context) {
	token, err := bearerToken(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	claims, err := s.auth.Tokens().ParseAccess(token)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := s.auth.Logout(c.Request.Context(), claims.SessionID, claims.UserID); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Logged out successfully")
}

// GET /api/auth/me
func (s *server) me(c *gin.Context) {
	id := identity(c)
	if id == nil {
		s.respondError(c, apperr.New(apperr.KindAuthentication, "Authentication required"))
		return
	}

	u, err := s.auth.Me(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, u)
}

// portfolio is a protected placeholder; holdings are not tracked yet.
// GET /api/portfolio
func (s *server) portfolio(c *gin.Context) {
	id := identity(c)
	if id == nil {
		s.respondError(c, apperr.New(apperr.KindAuthentication, "Authentication required"))
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"userId":   id.UserID,
		"holdings": []any{},
	})
}
