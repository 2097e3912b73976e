package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName         string
	AppVersion      string
	Environment     string
	AuthTokenSecret string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	OpenAI     OpenAIConfig
	ElevenLabs ElevenLabsConfig
	Storage    StorageConfig
	Stripe     StripeConfig
	RateLimit  RateLimitConfig

	FFProbeBin string
}

type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type ElevenLabsConfig struct {
	APIKey         string
	BaseURL        string
	VoiceID        string
	ModelID        string
	Timeout        time.Duration
	MaxAudioBytes  int64
	RetryBaseDelay time.Duration
	RetryAttempts  int
}

type StorageConfig struct {
	Bucket          string
	KeyPrefix       string
	CredentialsFile string
	SignedURLExpiry time.Duration
}

type StripeConfig struct {
	WebhookSecret string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	GenerateRate  float64
	GenerateBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:         getenv("APP_SERVICE", "sona"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		AuthTokenSecret: strings.TrimSpace(getenv("AUTH_TOKEN_SECRET", "")),
		OTLPEndpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "sona"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		OpenAI: OpenAIConfig{
			APIKey:    strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
			BaseURL:   getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:     getenv("OPENAI_MODEL", "gpt-4"),
			MaxTokens: getenvInt("OPENAI_MAX_TOKENS", 1200),
			Timeout:   getenvDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:         strings.TrimSpace(getenv("ELEVEN_LABS_API_KEY", "")),
			BaseURL:        getenv("ELEVEN_LABS_BASE_URL", "https://api.elevenlabs.io/v1"),
			VoiceID:        getenv("ELEVEN_LABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
			ModelID:        getenv("ELEVEN_LABS_MODEL_ID", "eleven_monolingual_v1"),
			Timeout:        getenvDuration("ELEVEN_LABS_TIMEOUT", 90*time.Second),
			MaxAudioBytes:  getenvInt64("ELEVEN_LABS_MAX_AUDIO_BYTES", 32<<20),
			RetryBaseDelay: getenvDuration("ELEVEN_LABS_RETRY_BASE_DELAY", 2*time.Second),
			RetryAttempts:  getenvInt("ELEVEN_LABS_RETRY_ATTEMPTS", 3),
		},
		Storage: StorageConfig{
			Bucket:          strings.TrimSpace(getenv("STORAGE_BUCKET", "")),
			KeyPrefix:       getenv("STORAGE_KEY_PREFIX", "meditations"),
			CredentialsFile: strings.TrimSpace(getenv("STORAGE_CREDENTIALS_FILE", "")),
			SignedURLExpiry: getenvDuration("STORAGE_SIGNED_URL_EXPIRY", 24*365*10*time.Hour),
		},
		Stripe: StripeConfig{
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			GenerateRate:  getenvFloat("RATE_LIMIT_GENERATE_RATE", 0.2),
			GenerateBurst: getenvInt("RATE_LIMIT_GENERATE_BURST", 3),
		},

		FFProbeBin: getenv("FFPROBE_BIN", "ffprobe"),
	}

	return cfg
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewLimitsHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
