package audithmac

import (
	"context"

	"github.com/dhis2/certification-app-sub003/internal/infra/vaultclient"
)

// Transit delegates the digest to Vault's transit HMAC endpoint. The key
// never leaves Vault.
type Transit struct {
	client  *vaultclient.Client
	keyName string
}

func NewTransit(client *vaultclient.Client, keyName string) *Transit {
	return &Transit{client: client, keyName: keyName}
}

func (t *Transit) Configured() bool {
	return t != nil && t.client != nil && t.keyName != ""
}

func (t *Transit) Sum(ctx context.Context, input []byte) ([]byte, error) {
	return t.client.HMAC(ctx, t.keyName, input)
}
