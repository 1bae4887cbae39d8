package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/artvision/curator/backend/internal/config"
	"github.com/artvision/curator/backend/internal/storage/sqlite"
)

// GoogleUserInfoURL is the OpenID Connect profile endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

const stateTTL = 10 * time.Minute

var (
	ErrOAuthDisabled = errors.New("google login is not configured")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Store is the persistence the service needs for users and login sessions.
type Store interface {
	UpsertUserByGoogleID(ctx context.Context, user *sqlite.User) (*sqlite.User, error)
	GetUser(ctx context.Context, id string) (*sqlite.User, error)
	CreateSession(ctx context.Context, session *sqlite.Session) error
	GetSession(ctx context.Context, id string) (*sqlite.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Option customises a Service.
type Option func(*Service)

// WithEndpoint overrides the Google OAuth endpoints.
func WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) Option {
	return func(s *Service) {
		s.oauth.Endpoint = endpoint
		s.userInfoURL = userInfoURL
	}
}

// Service handles Google sign-in and cookie-backed login sessions.
type Service struct {
	store       Store
	cfg         config.AuthConfig
	oauth       oauth2.Config
	states      *StateSigner
	userInfoURL string
	logger      *slog.Logger
}

// NewService creates the auth service. Login is disabled when cfg has no
// Google credentials; session lookups keep working.
func NewService(store Store, cfg config.AuthConfig, opts ...Option) *Service {
	s := &Service{
		store: store,
		cfg:   cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
		},
		states:      NewStateSigner([]byte(cfg.SessionSecret)),
		userInfoURL: GoogleUserInfoURL,
		logger:      slog.Default().With("component", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !cfg.OAuthEnabled() {
		s.logger.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, Google login disabled")
	}
	return s
}

// Enabled reports whether Google login is available.
func (s *Service) Enabled() bool {
	return s.cfg.OAuthEnabled()
}

// Config returns the auth settings.
func (s *Service) Config() config.AuthConfig {
	return s.cfg
}

// BeginLogin returns the Google consent URL and the signed state to mirror in a cookie.
func (s *Service) BeginLogin(redirectURL string) (authURL, state string, err error) {
	if !s.Enabled() {
		return "", "", ErrOAuthDisabled
	}

	nonce, err := generateSecureToken(16)
	if err != nil {
		return "", "", fmt.Errorf("generating state nonce: %w", err)
	}

	state, err = s.states.Generate(nonce, stateTTL)
	if err != nil {
		return "", "", fmt.Errorf("signing state: %w", err)
	}

	cfg := s.oauthConfig(redirectURL)
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOnline), state, nil
}

// CompleteLogin validates the callback, exchanges the code, stores the
// profile and opens a login session.
func (s *Service) CompleteLogin(ctx context.Context, redirectURL, code, state, cookieState string) (*sqlite.User, *sqlite.Session, error) {
	if !s.Enabled() {
		return nil, nil, ErrOAuthDisabled
	}
	if state == "" || state != cookieState {
		return nil, nil, ErrInvalidState
	}
	if _, err := s.states.Verify(state); err != nil {
		return nil, nil, err
	}
	if code == "" {
		return nil, nil, errors.New("missing authorization code")
	}

	cfg := s.oauthConfig(redirectURL)
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchanging code: %w", err)
	}

	profile, err := s.fetchProfile(ctx, cfg.Client(ctx, token))
	if err != nil {
		return nil, nil, err
	}

	user, err := s.store.UpsertUserByGoogleID(ctx, &sqlite.User{
		GoogleID:        profile.Sub,
		Email:           profile.Email,
		FirstName:       profile.GivenName,
		LastName:        profile.FamilyName,
		ProfileImageURL: profile.Picture,
	})
	if err != nil {
		return nil, nil, err
	}

	session, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user signed in", "user_id", user.ID)
	return user, session, nil
}

// CreateSession opens a login session for userID.
func (s *Service) CreateSession(ctx context.Context, userID string) (*sqlite.Session, error) {
	id, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := time.Now().UTC()
	session := &sqlite.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// UserForSession resolves a session cookie value to its user.
func (s *Service) UserForSession(ctx context.Context, sessionID string) (*sqlite.User, error) {
	if sessionID == "" {
		return nil, ErrUnauthorized
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, sqlite.ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if errors.Is(err, sqlite.ErrUserNotFound) {
		return nil, ErrUnauthorized
	}
	return user, err
}

// Logout ends a login session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, sessionID)
}

// RunJanitor prunes expired sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.store.DeleteExpiredSessions(ctx); err != nil {
				s.logger.Warn("pruning expired sessions failed", "error", err)
			}
		}
	}
}

type googleProfile struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func (s *Service) fetchProfile(ctx context.Context, client *http.Client) (*googleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching profile: unexpected status %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if profile.Sub == "" {
		return nil, errors.New("profile has no subject")
	}
	return &profile, nil
}

func (s *Service) oauthConfig(redirectURL string) *oauth2.Config {
	cfg := s.oauth
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return &cfg
}

func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
