package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseDomain      string   // Required-ish: domain suffix that anchors issuer resolution (default: localhost)
	LocalHosts      []string // Optional: extra hosts that classify as this deployment
	OfficialIssuers []string // Optional: vendor issuer hosts whose trust is handled elsewhere

	SigningKeyFile string // Where the signing key record lives (default: ./signing-key.json)
	DatabaseFile   string // Path to the SQLite session registry (default: ./sessions.db)

	SessionTTL       time.Duration // Token lifetime for all token kinds (default: 10h)
	ForeignKeyTTL    time.Duration // Foreign JWKS cache TTL (default: 1h)
	NegativeCacheTTL time.Duration // Hold-off after failed JWKS fetches (default: 30s)
	JWKSFetchTimeout time.Duration // Hard deadline per outbound JWKS fetch (default: 5s)

	AcceptSelfSigned   bool // Accept self-signed tokens on the exchange endpoints
	IncludeForeignJWKS bool // Surface cached foreign keys through discovery
	LegacyCatchAll     bool // Unknown paths mint a grant/access pair instead of 404

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-grant purge interval (default: 1h)
}

func LoadConfig() Config {
	// Local development keeps its settings in .env; absence is fine.
	_ = godotenv.Load()

	cfg := Config{
		BaseDomain:      getEnvOrDefault("DUALAUTH_BASE_DOMAIN", "localhost"),
		LocalHosts:      splitHosts(os.Getenv("DUALAUTH_LOCAL_HOSTS")),
		OfficialIssuers: splitHosts(os.Getenv("DUALAUTH_OFFICIAL_ISSUERS")),

		SigningKeyFile: getEnvOrDefault("DUALAUTH_SIGNING_KEY_FILE", "signing-key.json"),
		DatabaseFile:   getEnvOrDefault("DUALAUTH_DATABASE_FILE", "sessions.db"),

		SessionTTL:       getEnvDurationOrDefault("DUALAUTH_SESSION_TTL", 10*time.Hour),
		ForeignKeyTTL:    getEnvDurationOrDefault("DUALAUTH_FOREIGN_KEY_TTL", time.Hour),
		NegativeCacheTTL: getEnvDurationOrDefault("DUALAUTH_NEGATIVE_CACHE_TTL", 30*time.Second),
		JWKSFetchTimeout: getEnvDurationOrDefault("DUALAUTH_JWKS_FETCH_TIMEOUT", 5*time.Second),

		AcceptSelfSigned:   getEnvBool("DUALAUTH_ACCEPT_SELF_SIGNED", false),
		IncludeForeignJWKS: getEnvBool("DUALAUTH_JWKS_INCLUDE_FOREIGN", false),
		LegacyCatchAll:     getEnvBool("DUALAUTH_LEGACY_CATCH_ALL", false),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}

	return cfg
}

func splitHosts(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Durations like "1h" or "90s", or bare integers meaning seconds for
	// compatibility with the original deployment's config.
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
