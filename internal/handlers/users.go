package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/errs"
	"chat-backend/internal/middleware"
	"chat-backend/internal/service"
)

// UserHandler serves profile and directory endpoints.
type UserHandler struct {
	users service.UserService
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the authenticated account.
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respondError(c, errs.Unauthenticated(errs.CodeAuthenticationFailed, "missing identity"))
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"user": user})
}

// UpdateMe patches the caller's username and/or email.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respondError(c, errs.Unauthenticated(errs.CodeAuthenticationFailed, "missing identity"))
		return
	}

	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, req.Username, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"user": user})
}

// Search finds accounts by username or email fragment.
func (h *UserHandler) Search(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	users, err := h.users.SearchUsers(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"users": users})
}
