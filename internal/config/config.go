package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting of the service.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Auth   AuthConfig
	Log    LogConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig(server)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Auth: auth, Log: loadLogConfig()}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	Env            string
	MaxUploadBytes int64
	// AllowedOrigins lists the browser origins, besides the API's own host,
	// that may call the API with the session cookie.
	AllowedOrigins []string
}

// Production reports whether the service runs with production cookie settings.
func (c ServerConfig) Production() bool {
	return c.Env == "production"
}

const defaultMaxUploadBytes = 10 << 20

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	env := getEnvOrDefault("APP_ENV", getEnvOrDefault("NODE_ENV", "development"))

	maxUpload := int64(defaultMaxUploadBytes)
	if override, err := parseOptionalIntEnv("MAX_UPLOAD_BYTES"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid MAX_UPLOAD_BYTES value %d: must be positive", *override)
		}
		maxUpload = int64(*override)
	}

	origins := parseListEnv("ALLOWED_ORIGINS")

	if strings.Contains(port, ":") {
		// Accept ":5000" or "127.0.0.1:5000" verbatim.
		return ServerConfig{Addr: port, Env: env, MaxUploadBytes: maxUpload, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, Env: env, MaxUploadBytes: maxUpload, AllowedOrigins: origins}, nil
}

// Supported AI providers.
const (
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// AIConfig describes the generative model backing chat and image analysis.
type AIConfig struct {
	Provider string

	// Ark (Volcengine) credentials.
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
	Timeout        time.Duration
	HistoryLimit   int
}

// Enabled reports whether the selected provider has the credentials it needs.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	case ProviderOpenAI:
		return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
	default:
		return false
	}
}

// ModelName returns the model identifier of the selected provider.
func (c AIConfig) ModelName() string {
	switch c.Provider {
	case ProviderArk:
		return c.Model
	case ProviderGemini:
		return c.GeminiModel
	case ProviderOpenAI:
		return c.OpenAIModel
	default:
		return ""
	}
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	timeout := 60 * time.Second
	if seconds, err := parseOptionalIntEnv("AI_TIMEOUT"); err != nil {
		return AIConfig{}, err
	} else if seconds != nil && *seconds > 0 {
		timeout = time.Duration(*seconds) * time.Second
	}

	historyLimit := 10
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 {
			historyLimit = 0
		} else {
			historyLimit = *override
		}
	}

	cfg := AIConfig{
		Provider:       strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER"))),
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		GeminiAPIKey:   strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:  strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		OpenAIAPIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:  strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel:    getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
		Timeout:        timeout,
		HistoryLimit:   historyLimit,
	}

	switch cfg.Provider {
	case "":
		cfg.Provider = detectProvider(cfg)
	case ProviderArk, ProviderGemini, ProviderOpenAI:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", cfg.Provider)
	}

	return cfg, nil
}

// detectProvider picks the first provider with credentials, Gemini first.
func detectProvider(cfg AIConfig) string {
	switch {
	case cfg.GeminiAPIKey != "":
		return ProviderGemini
	case cfg.APIKey != "" || (cfg.AccessKey != "" && cfg.SecretKey != ""):
		return ProviderArk
	case cfg.OpenAIAPIKey != "":
		return ProviderOpenAI
	default:
		return ProviderGemini
	}
}

// AuthConfig describes Google login and the session store.
type AuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	CallbackURL        string
	SessionSecret      string
	DatabasePath       string
	SessionTTL         time.Duration
	SecureCookies      bool
	Required           bool
}

// OAuthEnabled reports whether Google credentials were provided.
func (c AuthConfig) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func loadAuthConfig(server ServerConfig) (AuthConfig, error) {
	required, err := parseBoolEnv("AUTH_REQUIRED", false)
	if err != nil {
		return AuthConfig{}, err
	}

	ttl := 7 * 24 * time.Hour
	if hours, err := parseOptionalIntEnv("SESSION_TTL_HOURS"); err != nil {
		return AuthConfig{}, err
	} else if hours != nil && *hours > 0 {
		ttl = time.Duration(*hours) * time.Hour
	}

	cfg := AuthConfig{
		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		CallbackURL:        getEnvOrDefault("GOOGLE_CALLBACK_URL", "/api/auth/google/callback"),
		SessionSecret:      strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		DatabasePath:       getEnvOrDefault("DATABASE_PATH", "data/curator.db"),
		SessionTTL:         ttl,
		SecureCookies:      server.Production(),
		Required:           required,
	}

	if cfg.OAuthEnabled() && cfg.SessionSecret == "" {
		return AuthConfig{}, fmt.Errorf("SESSION_SECRET is required when Google login is configured")
	}
	return cfg, nil
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseListEnv splits a comma-separated variable, dropping empty entries.
func parseListEnv(key string) []string {
	var values []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			values = append(values, item)
		}
	}
	return values
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
