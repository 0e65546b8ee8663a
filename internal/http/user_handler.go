package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/shop-api/internal/session"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	carts    CartService
	sessions SessionVerifier
	secure   bool
	timeout  time.Duration
	log      zerolog.Logger
}

func NewUserHandler(carts CartService, sessions SessionVerifier, secureCookies bool, timeout time.Duration, log zerolog.Logger) *UserHandler {
	return &UserHandler{carts: carts, sessions: sessions, secure: secureCookies, timeout: timeout, log: log}
}

// GET /api/user/is-auth
func (h *UserHandler) IsAuth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := session.UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("load cart for session failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

// POST /api/user/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims, ok := session.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	if err := h.sessions.Revoke(ctx, claims); err != nil {
		h.log.Error().Err(err).Str("user_id", claims.UserID()).Msg("revoke session failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	sameSite := http.SameSiteStrictMode
	if h.secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: sameSite,
	})
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "logged out"})
}
