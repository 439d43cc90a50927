package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	IssuerID   string
	IssuerName string
	BaseURL    string

	SignerMode          string // "local" or "transit"
	SigningKeySeedHex   string
	SigningKeyFile      string
	SigningKeyVersion   int
	CredentialTTLDays   int
	StatusListSize      int
	AllowRemoteContexts bool

	VaultAddr        string
	VaultToken       string
	VaultRoleID      string
	VaultSecretID    string
	VaultTransitKey  string
	VaultTimeoutSecs int
	VaultRenewSecs   int

	AuditHMACKeyHex string
	AuditHMACMode   string // "local" or "transit"

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionMaxPerUser   int
	SessionTTLSeconds   int
	BlacklistCacheMax   int
	BlacklistSweepSecs  int
	BreakerThreshold    int
	BreakerCooldownSecs int

	EncryptionMode   string // "local" or "transit"
	EncryptionKeyHex string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool

	AdminAPIKey string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:    addr,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		LogLevel:    envDefault("LOG_LEVEL", "info"),

		IssuerID:   envDefault("ISSUER_ID", "did:web:certification.dhis2.org"),
		IssuerName: envDefault("ISSUER_NAME", "DHIS2 Certification Authority"),
		BaseURL:    envDefault("BASE_URL", "https://certification.dhis2.org"),

		SignerMode:          envDefault("SIGNER_MODE", "local"),
		SigningKeySeedHex:   os.Getenv("SIGNING_KEY_SEED_HEX"),
		SigningKeyFile:      os.Getenv("SIGNING_KEY_FILE"),
		SigningKeyVersion:   envIntDefault("SIGNING_KEY_VERSION", 1),
		CredentialTTLDays:   envIntDefault("CREDENTIAL_TTL_DAYS", 1095),
		StatusListSize:      envIntDefault("STATUS_LIST_SIZE", 131072),
		AllowRemoteContexts: envBoolDefault("ALLOW_REMOTE_CONTEXTS", false),

		VaultAddr:        os.Getenv("VAULT_ADDR"),
		VaultToken:       os.Getenv("VAULT_TOKEN"),
		VaultRoleID:      os.Getenv("VAULT_ROLE_ID"),
		VaultSecretID:    os.Getenv("VAULT_SECRET_ID"),
		VaultTransitKey:  envDefault("VAULT_TRANSIT_KEY", "certification-signing"),
		VaultTimeoutSecs: envIntDefault("VAULT_TIMEOUT_SECONDS", 10),
		VaultRenewSecs:   envIntDefault("VAULT_RENEW_SECONDS", 600),

		AuditHMACKeyHex: os.Getenv("AUDIT_HMAC_KEY_HEX"),
		AuditHMACMode:   envDefault("AUDIT_HMAC_MODE", "local"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envIntDefault("REDIS_DB", 0),

		SessionMaxPerUser:   envIntDefault("SESSION_MAX_PER_USER", 5),
		SessionTTLSeconds:   envIntDefault("SESSION_TTL_SECONDS", 604800),
		BlacklistCacheMax:   envIntDefault("BLACKLIST_CACHE_MAX", 10000),
		BlacklistSweepSecs:  envIntDefault("BLACKLIST_SWEEP_SECONDS", 60),
		BreakerThreshold:    envIntDefault("BREAKER_THRESHOLD", 5),
		BreakerCooldownSecs: envIntDefault("BREAKER_COOLDOWN_SECONDS", 30),

		EncryptionMode:   envDefault("ENCRYPTION_MODE", "local"),
		EncryptionKeyHex: os.Getenv("ENCRYPTION_KEY_HEX"),

		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),

		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),
	}
}

// Validate enforces mode-required secrets at startup. Missing configuration is
// always fatal, never silently degraded.
func (c Config) Validate() error {
	switch c.SignerMode {
	case "local":
		// A local signer without key material falls back to an ephemeral
		// keypair, which is allowed but warned about at startup.
	case "transit":
		if c.VaultAddr == "" {
			return errors.New("SIGNER_MODE=transit requires VAULT_ADDR")
		}
		if c.VaultToken == "" && (c.VaultRoleID == "" || c.VaultSecretID == "") {
			return errors.New("SIGNER_MODE=transit requires VAULT_TOKEN or VAULT_ROLE_ID/VAULT_SECRET_ID")
		}
	default:
		return errors.New("unsupported SIGNER_MODE: " + c.SignerMode)
	}
	switch c.AuditHMACMode {
	case "local":
		if c.AuditHMACKeyHex == "" {
			return errors.New("AUDIT_HMAC_MODE=local requires AUDIT_HMAC_KEY_HEX")
		}
	case "transit":
		if c.VaultAddr == "" {
			return errors.New("AUDIT_HMAC_MODE=transit requires VAULT_ADDR")
		}
	default:
		return errors.New("unsupported AUDIT_HMAC_MODE: " + c.AuditHMACMode)
	}
	switch c.EncryptionMode {
	case "local":
		if c.EncryptionKeyHex == "" {
			return errors.New("ENCRYPTION_MODE=local requires ENCRYPTION_KEY_HEX")
		}
	case "transit":
		if c.VaultAddr == "" {
			return errors.New("ENCRYPTION_MODE=transit requires VAULT_ADDR")
		}
	default:
		return errors.New("unsupported ENCRYPTION_MODE: " + c.EncryptionMode)
	}
	// The session gate verifies bearer tokens with this key. An empty key
	// would accept tokens HMAC'd with "", so it can never default.
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AdminAPIKey == "" {
		return errors.New("ADMIN_API_KEY is required")
	}
	return nil
}

func (c Config) VaultTimeout() time.Duration {
	return time.Duration(c.VaultTimeoutSecs) * time.Second
}

func (c Config) VaultRenewInterval() time.Duration {
	return time.Duration(c.VaultRenewSecs) * time.Second
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c Config) CredentialTTL() time.Duration {
	return time.Duration(c.CredentialTTLDays) * 24 * time.Hour
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSecs) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
