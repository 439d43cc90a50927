package local

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/config"
	"github.com/dhis2/certification-app-sub003/internal/domain"
)

// Manager holds an Ed25519 keypair in process memory. Key material comes from
// a hex seed in the environment, a key file, or is generated ephemerally; the
// ephemeral case is warned about at startup because signatures will not be
// re-verifiable after a restart.
type Manager struct {
	mu      sync.RWMutex
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	version int
	logger  *zap.Logger
}

func NewManager(cfg config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{version: cfg.SigningKeyVersion, logger: logger}
	if m.version <= 0 {
		m.version = 1
	}

	switch {
	case cfg.SigningKeySeedHex != "":
		priv, err := keyFromHex(cfg.SigningKeySeedHex)
		if err != nil {
			return nil, err
		}
		m.priv = priv
	case cfg.SigningKeyFile != "":
		priv, err := keyFromFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, err
		}
		m.priv = priv
	default:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		m.priv = priv
		logger.Warn("no signing key configured, generated ephemeral keypair; issued credentials will not verify after restart")
	}
	m.pub = m.priv.Public().(ed25519.PublicKey)
	return m, nil
}

func (m *Manager) Sign(_ context.Context, payload []byte) ([]byte, error) {
	if !m.Initialized() {
		return nil, domain.ErrSignerUninitialized
	}
	if len(payload) == 0 {
		return nil, domain.ErrEmptyPayload
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ed25519.Sign(m.priv, payload), nil
}

func (m *Manager) PublicKeyRaw() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.pub...)
}

func (m *Manager) PublicKeyMultibase() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return "z" + base58.Encode(m.pub)
}

func (m *Manager) KeyVersion() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.priv) == ed25519.PrivateKeySize
}

// Rotate generates a fresh keypair and bumps the version. Administrator
// triggered only; the version never moves on its own.
func (m *Manager) Rotate() (domain.KeyMaterial, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.KeyMaterial{}, err
	}
	m.mu.Lock()
	m.priv = priv
	m.pub = pub
	m.version++
	version := m.version
	m.mu.Unlock()

	m.logger.Info("signing key rotated", zap.Int("version", version))
	return domain.KeyMaterial{
		Version:            version,
		PublicKeyRaw:       append([]byte(nil), pub...),
		PublicKeyMultibase: "z" + base58.Encode(pub),
	}, nil
}

// Verify is a pure function of (message, signature, public key); it rejects
// tampering in either message or signature bytes.
func Verify(pub, payload, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("invalid ed25519 public key length")
	}
	if len(sig) != ed25519.SignatureSize {
		return errors.New("invalid ed25519 signature length")
	}
	if !ed25519.Verify(pub, payload, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}

func keyFromHex(value string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, errors.New("invalid signing key seed hex")
	}
	return parseKeyBytes(raw)
}

func keyFromFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if raw, err := hex.DecodeString(trimmed); err == nil {
		return parseKeyBytes(raw)
	}
	return parseKeyBytes([]byte(trimmed))
}

func parseKeyBytes(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("invalid ed25519 private key length")
	}
}

var _ domain.Signer = (*Manager)(nil)
