package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artvision/curator/backend/internal/storage/sqlite"
)

type stubResolver map[string]*sqlite.User

func (s stubResolver) UserForSession(_ context.Context, id string) (*sqlite.User, error) {
	if user, ok := s[id]; ok {
		return user, nil
	}
	return nil, errors.New("unknown session")
}

func preflight(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, "http://api.curator.test/api/session", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	return req
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	handler := NewOriginPolicy([]string{"http://localhost:5173/"}).CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, preflight("http://localhost:5173"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSRejectsUnlistedOrigin(t *testing.T) {
	handler := NewOriginPolicy([]string{"http://localhost:5173"}).CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, preflight("https://evil.example"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	req := httptest.NewRequest(http.MethodGet, "http://api.curator.test/api/auth/user", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSEmptyListAllowsOnlySameHost(t *testing.T) {
	policy := NewOriginPolicy(nil)
	handler := policy.CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, preflight("https://evil.example"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, preflight("http://api.curator.test"))
	assert.Equal(t, "http://api.curator.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginPolicyCheckOrigin(t *testing.T) {
	policy := NewOriginPolicy([]string{"https://curator.example.com"})

	cases := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "no origin", origin: "", want: true},
		{name: "listed", origin: "https://Curator.example.com", want: true},
		{name: "same host", origin: "http://api.curator.test", want: true},
		{name: "foreign", origin: "https://evil.example", want: false},
		{name: "garbage", origin: "::::", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://api.curator.test/api/session/s1/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			assert.Equal(t, tc.want, policy.CheckOrigin(req))
		})
	}
}

func TestLoadUserAndRequireAuth(t *testing.T) {
	resolver := stubResolver{"good": {ID: "u1", Email: "a@b.c"}}
	protected := LoadUser(resolver)(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", UserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})))

	cases := []struct {
		name   string
		cookie string
		want   int
	}{
		{name: "no cookie", want: http.StatusUnauthorized},
		{name: "unknown session", cookie: "bad", want: http.StatusUnauthorized},
		{name: "valid session", cookie: "good", want: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestUserIDAnonymous(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
}
