package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/service"
)

// AuthHandler serves registration, login and token refresh.
type AuthHandler struct {
	users service.UserService
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register creates an account and returns it with a fresh token pair.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	user, tokens, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, gin.H{"user": user, "tokens": tokens})
}

// Login verifies credentials and returns the account with a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	user, tokens, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// Refresh exchanges a refresh token for a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !bindJSON(c, &req) {
		return
	}

	tokens, err := h.users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"tokens": tokens})
}
