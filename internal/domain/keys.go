package domain

import (
	"context"
	"strconv"
)

// Signer is the capability interface over signing key material. Exactly one
// implementation is active at a time, selected at startup: a local Ed25519
// keypair or a remote transit service that never exposes raw private keys.
type Signer interface {
	Sign(ctx context.Context, payload []byte) ([]byte, error)
	PublicKeyRaw() []byte
	PublicKeyMultibase() string
	KeyVersion() int
	Initialized() bool
}

type KeyMaterial struct {
	Version            int
	PublicKeyRaw       []byte
	PublicKeyMultibase string
}

// VerificationMethod names the key a proof was produced with. The version is
// monotonic and moves only on administrator-triggered rotation.
func VerificationMethod(issuerID string, version int) string {
	return issuerID + "#key-" + strconv.Itoa(version)
}
