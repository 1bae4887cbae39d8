package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/artvision/curator/backend/internal/config"
	"github.com/artvision/curator/backend/internal/middleware"
	authService "github.com/artvision/curator/backend/internal/service/auth"
	"github.com/artvision/curator/backend/internal/storage/sqlite"
)

func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":         "google-7",
			"email":       "tarsila@example.com",
			"given_name":  "Tarsila",
			"family_name": "do Amaral",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupRouter(t *testing.T, cfg config.AuthConfig) http.Handler {
	t.Helper()
	google := fakeGoogle(t)
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := authService.NewService(db, cfg, authService.WithEndpoint(oauth2.Endpoint{
		AuthURL:   google.URL + "/auth",
		TokenURL:  google.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}, google.URL+"/userinfo"))

	r := chi.NewRouter()
	r.Use(middleware.LoadUser(svc))
	New(svc).RegisterRoutes(r)
	return r
}

func enabledConfig() config.AuthConfig {
	return config.AuthConfig{
		GoogleClientID:     "id",
		GoogleClientSecret: "secret",
		CallbackURL:        "/api/auth/google/callback",
		SessionSecret:      "s3cret",
		SessionTTL:         time.Hour,
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginFlow(t *testing.T) {
	r := setupRouter(t, enabledConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://curator.test/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "http://curator.test/api/auth/google/callback", location.Query().Get("redirect_uri"))

	stateCookie := findCookie(rec, stateCookieName)
	require.NotNil(t, stateCookie)
	assert.True(t, stateCookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "http://curator.test/auth/google/callback?code=good-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(stateCookie)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	sessionCookie := findCookie(rec, middleware.SessionCookieName)
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, sessionCookie.SameSite)

	req = httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var user map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "tarsila@example.com", user["email"])
	assert.Equal(t, "Tarsila", user["firstName"])
	assert.Equal(t, "do Amaral", user["lastName"])
	assert.Contains(t, user, "id")
	assert.Contains(t, user, "profileImageUrl")
	assert.NotContains(t, user, "GoogleID")

	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
	cleared := findCookie(rec, middleware.SessionCookieName)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	req = httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
}

func TestCallbackFailureRedirects(t *testing.T) {
	r := setupRouter(t, enabledConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=good-code&state=forged", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?error=auth_failed", rec.Header().Get("Location"))
}

func TestLoginDisabledWithoutCredentials(t *testing.T) {
	cfg := enabledConfig()
	cfg.GoogleClientSecret = ""
	r := setupRouter(t, cfg)

	for _, path := range []string{"/login", "/auth/google/callback"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
