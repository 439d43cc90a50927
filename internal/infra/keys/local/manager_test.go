package local

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/dhis2/certification-app-sub003/internal/config"
)

func seedHex() string {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return hex.EncodeToString(seed)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	m, err := NewManager(config.Config{SigningKeySeedHex: seedHex(), SigningKeyVersion: 1}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	payload := []byte("canonical credential bytes")
	sig, err := m.Sign(context.Background(), payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != ed25519.SignatureSize {
		t.Fatalf("expected 64-byte signature, got %d", len(sig))
	}
	if err := Verify(m.PublicKeyRaw(), payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	m, err := NewManager(config.Config{SigningKeySeedHex: seedHex()}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	payload := []byte("canonical credential bytes")
	sig, err := m.Sign(context.Background(), payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	flippedPayload := append([]byte(nil), payload...)
	flippedPayload[0] ^= 0x01
	if err := Verify(m.PublicKeyRaw(), flippedPayload, sig); err == nil {
		t.Fatal("expected verification failure for tampered message")
	}

	flippedSig := append([]byte(nil), sig...)
	flippedSig[10] ^= 0x01
	if err := Verify(m.PublicKeyRaw(), payload, flippedSig); err == nil {
		t.Fatal("expected verification failure for tampered signature")
	}
}

func TestSign_RejectsEmptyPayload(t *testing.T) {
	m, err := NewManager(config.Config{SigningKeySeedHex: seedHex()}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Sign(context.Background(), nil); err == nil {
		t.Fatal("expected empty payload to be rejected")
	}
}

func TestNewManager_DeterministicFromSeed(t *testing.T) {
	a, err := NewManager(config.Config{SigningKeySeedHex: seedHex()}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	b, err := NewManager(config.Config{SigningKeySeedHex: seedHex()}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if a.PublicKeyMultibase() != b.PublicKeyMultibase() {
		t.Fatal("same seed produced different public keys")
	}
}

func TestPublicKeyMultibase_Base58BTC(t *testing.T) {
	m, err := NewManager(config.Config{SigningKeySeedHex: seedHex()}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	mb := m.PublicKeyMultibase()
	if !strings.HasPrefix(mb, "z") || len(mb) < 2 {
		t.Fatalf("unexpected multibase form %q", mb)
	}
}

func TestNewManager_EphemeralWhenUnconfigured(t *testing.T) {
	m, err := NewManager(config.Config{}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if !m.Initialized() {
		t.Fatal("ephemeral manager should be initialized")
	}
}

func TestRotate_BumpsVersionMonotonically(t *testing.T) {
	m, err := NewManager(config.Config{SigningKeySeedHex: seedHex(), SigningKeyVersion: 3}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	before := m.PublicKeyMultibase()
	material, err := m.Rotate()
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if material.Version != 4 || m.KeyVersion() != 4 {
		t.Fatalf("expected version 4 after rotation, got %d", material.Version)
	}
	if m.PublicKeyMultibase() == before {
		t.Fatal("rotation did not change public key")
	}
}
