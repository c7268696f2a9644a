package handlers

import (
	"errors"
	"net/http"
	"strings"

	"promptqueue/internal/providers/session"
)

// SessionStatus validates the caller's credential. Informational only; the
// queue keeps processing regardless of the outcome here.
func (a *App) SessionStatus(w http.ResponseWriter, r *http.Request) {
	credential := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	err := a.Sessions.Check(r.Context(), credential)
	if err == nil {
		a.json(w, http.StatusOK, map[string]string{"status": "valid"})
		return
	}
	switch {
	case errors.Is(err, session.ErrExpired):
		a.error(w, http.StatusUnauthorized, "expired", "session expired")
	case errors.Is(err, session.ErrBlocked):
		a.error(w, http.StatusForbidden, "blocked", "account blocked")
	case errors.Is(err, session.ErrNetwork):
		a.error(w, http.StatusBadGateway, "network_error", "session check unreachable")
	default:
		a.error(w, http.StatusBadRequest, "invalid", "invalid credential")
	}
}
