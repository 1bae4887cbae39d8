package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artvision/curator/backend/internal/middleware"
	authService "github.com/artvision/curator/backend/internal/service/auth"
	"github.com/artvision/curator/backend/pkg/utils"
)

const stateCookieName = "curator_oauth_state"

// Handler serves Google login, logout and the current-user endpoint.
type Handler struct {
	authSvc *authService.Service
	logger  *slog.Logger
}

// New creates the auth handler.
func New(authSvc *authService.Service) *Handler {
	return &Handler{
		authSvc: authSvc,
		logger:  slog.Default().With("component", "auth"),
	}
}

// RegisterRoutes registers the auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/login", h.handleLogin)
	r.Get("/auth/google/callback", h.handleCallback)
	r.Get("/logout", h.handleLogout)
	r.Get("/auth/user", h.handleCurrentUser)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := h.authSvc.BeginLogin(h.callbackURL(r))
	if errors.Is(err, authService.ErrOAuthDisabled) {
		utils.RespondError(w, http.StatusServiceUnavailable, "google login is not configured")
		return
	}
	if err != nil {
		h.logger.Error("failed to start login", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.authSvc.Config().SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.authSvc.Enabled() {
		utils.RespondError(w, http.StatusServiceUnavailable, "google login is not configured")
		return
	}

	cookieState := ""
	if cookie, err := r.Cookie(stateCookieName); err == nil {
		cookieState = cookie.Value
	}
	h.clearCookie(w, stateCookieName, "/api/auth")

	query := r.URL.Query()
	_, session, err := h.authSvc.CompleteLogin(r.Context(), h.callbackURL(r), query.Get("code"), query.Get("state"), cookieState)
	if err != nil {
		h.logger.Warn("login failed", "error", err)
		http.Redirect(w, r, "/?error=auth_failed", http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.authSvc.Config().SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := h.authSvc.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("logout failed", "error", err)
		}
	}

	h.clearCookie(w, middleware.SessionCookieName, "/")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.authSvc.Config().SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// callbackURL resolves a relative GOOGLE_CALLBACK_URL against the request host.
func (h *Handler) callbackURL(r *http.Request) string {
	configured := h.authSvc.Config().CallbackURL
	if strings.HasPrefix(configured, "http://") || strings.HasPrefix(configured, "https://") {
		return configured
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: r.Host, Path: configured}).String()
}
