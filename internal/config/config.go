package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

type Config struct {
	Env               string
	HTTPAddr          string
	GRPCAddr          string
	StorageBackend    string
	DatabaseURL       string
	SQLitePath        string
	RedisAddr         string
	RedisPassword     string
	RedisRequired     bool
	JWTSecret         string
	JWTIssuer         string
	AccessTokenTTL    time.Duration
	AdminEmail        string
	AdminPassword     string
	AdminPasswordHash string
	SessionIdleTTL    time.Duration
	SessionCacheTTL   time.Duration
	ServiceAuthToken  string
	SendgridAPIKey    string
	MailFrom          string
	RollbarToken      string
	LogLevel          string
	LogFormat         string
	StreamKeepAlive   time.Duration
}

// Load reads the process environment. A .env file in the working directory
// (or the file named by ENV_FILE) is applied first without overriding
// variables that are already set.
func Load() Config {
	loadDotEnv()
	return Config{
		Env:               getenv("ENV", "dev"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:          getenv("GRPC_ADDR", ":9090"),
		StorageBackend:    strings.ToLower(getenv("STORAGE_BACKEND", BackendLocal)),
		DatabaseURL:       getenv("DATABASE_URL", ""),
		SQLitePath:        getenv("SQLITE_PATH", "schoolinfo.db"),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisRequired:     getenvBool("REDIS_REQUIRED", false),
		JWTSecret:         getenv("JWT_SECRET", ""),
		JWTIssuer:         getenv("JWT_ISSUER", "smp-announcement"),
		AccessTokenTTL:    getenvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		AdminEmail:        getenv("ADMIN_EMAIL", ""),
		AdminPassword:     getenv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getenv("ADMIN_PASSWORD_HASH", ""),
		SessionIdleTTL:    getenvDuration("SESSION_IDLE_TIMEOUT", time.Minute),
		SessionCacheTTL:   getenvDuration("SESSION_CACHE_TTL", 5*time.Second),
		ServiceAuthToken:  getenv("SERVICE_AUTH_TOKEN", ""),
		SendgridAPIKey:    getenv("SENDGRID_API_KEY", ""),
		MailFrom:          getenv("MAIL_FROM", "noreply@localhost"),
		RollbarToken:      getenv("ROLLBAR_TOKEN", ""),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogFormat:         getenv("LOG_FORMAT", "text"),
		StreamKeepAlive:   getenvDuration("STREAM_KEEPALIVE", 25*time.Second),
	}
}

func (c Config) Remote() bool {
	return c.StorageBackend == BackendRemote
}

func loadDotEnv() {
	path := getenv("ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
