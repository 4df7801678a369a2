package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"worklog/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	EmpID    string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Dept     string `json:"dept"`
}

// handleLogin exchanges credentials for a session token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respondBadRequest(c, "email and password are required")
		return
	}

	token, user, err := s.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{"token": token, "user": user})
}

// handleRegister creates an employee account. Only admins get here successfully.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	user, err := s.accounts.Register(c.Request.Context(), actorFrom(c), auth.RegisterInput{
		EmpID:    req.EmpID,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Dept:     req.Dept,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, "Employee Registered", gin.H{"user": user})
}
