package transit

import (
	"context"
	"errors"
	"sync"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/vaultclient"
)

// maxPayloadSize caps what we will ship to the transit service. Oversized
// payloads are rejected before any network round-trip.
const maxPayloadSize = 1 << 20

// Manager delegates signing to the transit service; private key material
// never enters this process. The public key and version are cached from the
// key endpoint and refreshed when a signature comes back under a newer
// version.
type Manager struct {
	client  *vaultclient.Client
	keyName string
	logger  *zap.Logger

	mu      sync.RWMutex
	pub     []byte
	version int
}

func NewManager(ctx context.Context, client *vaultclient.Client, keyName string, logger *zap.Logger) (*Manager, error) {
	if client == nil {
		return nil, errors.New("transit client is required")
	}
	if keyName == "" {
		return nil, errors.New("transit key name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{client: client, keyName: keyName, logger: logger}
	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Refresh re-reads the key endpoint, picking up administrator-triggered
// rotations on the transit side.
func (m *Manager) Refresh(ctx context.Context) error {
	info, err := m.client.GetKeyInfo(ctx, m.keyName)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.pub = info.PublicKey
	m.version = info.LatestVersion
	m.mu.Unlock()
	return nil
}

func (m *Manager) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, domain.ErrEmptyPayload
	}
	if len(payload) > maxPayloadSize {
		return nil, domain.ErrPayloadTooLarge
	}
	sig, version, err := m.client.Sign(ctx, m.keyName, payload)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	cached := m.version
	m.mu.RUnlock()
	if version != cached {
		m.logger.Info("transit key version changed, refreshing public key",
			zap.Int("cached", cached), zap.Int("current", version))
		if err := m.Refresh(ctx); err != nil {
			m.logger.Warn("public key refresh failed", zap.Error(err))
		}
	}
	return sig, nil
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
	return len(m.pub) > 0
}

var _ domain.Signer = (*Manager)(nil)
