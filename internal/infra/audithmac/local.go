// Package audithmac provides the keyed-digest backends behind audit entry
// signatures: a local HMAC-SHA256 key or a Vault transit key.
package audithmac

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Local computes HMAC-SHA256 with an in-process key.
type Local struct {
	key []byte
}

// NewLocal parses a hex-encoded key. An empty key yields an unconfigured
// instance rather than an error, so callers can decide how to degrade.
func NewLocal(keyHex string) (*Local, error) {
	if keyHex == "" {
		return &Local{}, nil
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode audit hmac key: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("audit hmac key too short: %d bytes", len(key))
	}
	return &Local{key: key}, nil
}

func (l *Local) Configured() bool {
	return l != nil && len(l.key) > 0
}

func (l *Local) Sum(_ context.Context, input []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, l.key)
	mac.Write(input)
	return mac.Sum(nil), nil
}
