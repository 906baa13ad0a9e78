package handler

import (
	"context"
	"net/http"

	"github.com/retroarcade/hiscore/internal/service"
)

// AdminAuthenticator exchanges admin credentials for a token.
type AdminAuthenticator interface {
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
}

// AuthHandler handles admin login.
type AuthHandler struct {
	admins AdminAuthenticator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(admins AdminAuthenticator) *AuthHandler {
	return &AuthHandler{admins: admins}
}

// AdminLogin handles POST /auth/admin/login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := DecodeJSON(r, &input); err != nil {
		badBody(w)
		return
	}
	input.IP = ClientIP(r)

	result, err := h.admins.Login(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}
