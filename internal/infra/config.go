package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	LogLevel    string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string

	LetzAIAPIKey        string
	LetzAIBaseURL       string
	LetzAIWidth         int
	LetzAIHeight        int
	LetzAIQuality       int
	LetzAICreativity    int
	LetzAIWatermark     bool
	LetzAISystemVersion int
	LetzAIMode          string

	AnalysisInstruction string
	AnalysisTimeout     time.Duration
	AnalysisSilence     time.Duration
	GenerationTimeout   time.Duration
	PollInterval        time.Duration
	PollTimeout         time.Duration
	TraitVocabularyPath string
	MemeCatalogPath     string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
	SessionIdleTTL   time.Duration
}

const (
	minPollInterval = 5 * time.Second
	maxPollInterval = 10 * time.Second
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),

		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:     strings.TrimSpace(os.Getenv("OPENAI_ORG")),

		LetzAIAPIKey:        strings.TrimSpace(os.Getenv("LETZAI_API_KEY")),
		LetzAIBaseURL:       getEnv("LETZAI_BASE_URL", "https://api.letz.ai"),
		LetzAIWidth:         getEnvInt("LETZAI_WIDTH", 1024),
		LetzAIHeight:        getEnvInt("LETZAI_HEIGHT", 1024),
		LetzAIQuality:       getEnvInt("LETZAI_QUALITY", 2),
		LetzAICreativity:    getEnvInt("LETZAI_CREATIVITY", 2),
		LetzAIWatermark:     getEnvBool("LETZAI_WATERMARK", true),
		LetzAISystemVersion: getEnvInt("LETZAI_SYSTEM_VERSION", 3),
		LetzAIMode:          getEnv("LETZAI_MODE", "default"),

		AnalysisInstruction: strings.TrimSpace(os.Getenv("ANALYSIS_INSTRUCTION")),
		AnalysisTimeout:     getEnvSeconds("ANALYSIS_TIMEOUT_SECONDS", 60),
		AnalysisSilence:     getEnvSeconds("ANALYSIS_SILENCE_SECONDS", 20),
		GenerationTimeout:   getEnvSeconds("GENERATION_TIMEOUT_SECONDS", 30),
		PollInterval:        getEnvSeconds("POLL_INTERVAL_SECONDS", 5),
		PollTimeout:         getEnvSeconds("POLL_TIMEOUT_SECONDS", 15),
		TraitVocabularyPath: strings.TrimSpace(os.Getenv("TRAIT_VOCABULARY_PATH")),
		MemeCatalogPath:     strings.TrimSpace(os.Getenv("MEME_CATALOG_PATH")),

		HTTPReadTimeout:  getEnvSeconds("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout: getEnvSeconds("HTTP_WRITE_TIMEOUT_SECONDS", 120),
		HTTPIdleTimeout:  getEnvSeconds("HTTP_IDLE_TIMEOUT_SECONDS", 60),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      splitList(os.Getenv("CORS_ORIGINS")),
		SessionIdleTTL:   time.Minute * time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)),
	}

	if cfg.PollInterval < minPollInterval || cfg.PollInterval > maxPollInterval {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be between %d and %d", int(minPollInterval.Seconds()), int(maxPollInterval.Seconds()))
	}
	for name, d := range map[string]time.Duration{
		"ANALYSIS_TIMEOUT_SECONDS":   cfg.AnalysisTimeout,
		"ANALYSIS_SILENCE_SECONDS":   cfg.AnalysisSilence,
		"GENERATION_TIMEOUT_SECONDS": cfg.GenerationTimeout,
		"POLL_TIMEOUT_SECONDS":       cfg.PollTimeout,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive", name)
		}
	}
	if cfg.AnalysisSilence > cfg.AnalysisTimeout {
		return nil, fmt.Errorf("ANALYSIS_SILENCE_SECONDS must not exceed ANALYSIS_TIMEOUT_SECONDS")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, fallback))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
