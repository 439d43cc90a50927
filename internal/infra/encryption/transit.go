package encryption

import (
	"context"

	"github.com/dhis2/certification-app-sub003/internal/infra/vaultclient"
)

// Transit delegates to Vault's transit encrypt/decrypt endpoints. Ciphertexts
// carry Vault's own "vault:vN:" prefix, which encodes the key version used.
type Transit struct {
	client  *vaultclient.Client
	keyName string
}

func NewTransit(client *vaultclient.Client, keyName string) *Transit {
	return &Transit{client: client, keyName: keyName}
}

func (t *Transit) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	return t.client.Encrypt(ctx, t.keyName, plaintext)
}

func (t *Transit) Decrypt(ctx context.Context, ciphertext string) ([]byte, error) {
	return t.client.Decrypt(ctx, t.keyName, ciphertext)
}
