package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		SignerMode:       "local",
		AuditHMACMode:    "local",
		AuditHMACKeyHex:  "8b5f0c2f4a1e9d3c7b6a5f4e3d2c1b0a8b5f0c2f4a1e9d3c7b6a5f4e3d2c1b0a",
		EncryptionMode:   "local",
		EncryptionKeyHex: "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d",
		JWTSecret:        "session-signing-key",
		AdminAPIKey:      "admin-key",
	}
}

func TestValidate_AcceptsCompleteLocalConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_RequiresJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.JWTSecret = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("empty JWT_SECRET accepted; the session gate would verify tokens with an empty key")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("error does not name the missing variable: %v", err)
	}
}

func TestValidate_RequiresAdminAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.AdminAPIKey = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("empty ADMIN_API_KEY accepted")
	}
	if !strings.Contains(err.Error(), "ADMIN_API_KEY") {
		t.Fatalf("error does not name the missing variable: %v", err)
	}
}

func TestValidate_TransitModesRequireVaultAddr(t *testing.T) {
	cfg := validConfig()
	cfg.SignerMode = "transit"
	if err := cfg.Validate(); err == nil {
		t.Fatal("transit signer without VAULT_ADDR accepted")
	}

	cfg = validConfig()
	cfg.AuditHMACMode = "transit"
	if err := cfg.Validate(); err == nil {
		t.Fatal("transit audit HMAC without VAULT_ADDR accepted")
	}
}

func TestValidate_LocalAuditHMACRequiresKey(t *testing.T) {
	cfg := validConfig()
	cfg.AuditHMACKeyHex = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("local audit HMAC without key accepted")
	}
}
