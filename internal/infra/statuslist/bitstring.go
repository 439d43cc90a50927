// Package statuslist implements the bitstring revocation list format:
// one bit per issued credential, compressed and multibase-encoded when
// published.
package statuslist

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// MinimumBits is the smallest list a verifier will accept. The size gives
// holders herd privacy: a status lookup cannot be tied to one credential.
const MinimumBits = 131072

// Bitstring is a fixed-capacity bit array. Index 0 is the most significant
// bit of byte 0.
type Bitstring struct {
	bits []byte
}

func NewBitstring(sizeBits int) *Bitstring {
	if sizeBits < MinimumBits {
		sizeBits = MinimumBits
	}
	return &Bitstring{bits: make([]byte, (sizeBits+7)/8)}
}

// FromBytes wraps an existing bitmap, e.g. one loaded from storage.
func FromBytes(raw []byte) *Bitstring {
	return &Bitstring{bits: raw}
}

func (b *Bitstring) Len() int {
	return len(b.bits) * 8
}

func (b *Bitstring) Bytes() []byte {
	return b.bits
}

func (b *Bitstring) Set(index int) error {
	if index < 0 || index >= b.Len() {
		return fmt.Errorf("status list index %d out of range [0, %d)", index, b.Len())
	}
	b.bits[index/8] |= 1 << (7 - uint(index%8))
	return nil
}

func (b *Bitstring) Get(index int) (bool, error) {
	if index < 0 || index >= b.Len() {
		return false, fmt.Errorf("status list index %d out of range [0, %d)", index, b.Len())
	}
	return b.bits[index/8]&(1<<(7-uint(index%8))) != 0, nil
}

// Encoded returns the published form: gzip then multibase base64url without
// padding, "u" prefix.
func (b *Bitstring) Encoded() (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b.bits); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return "u" + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encoded.
func Decode(encoded string) (*Bitstring, error) {
	if len(encoded) < 2 || encoded[0] != 'u' {
		return nil, fmt.Errorf("unsupported multibase prefix in encoded list")
	}
	compressed, err := base64.RawURLEncoding.DecodeString(encoded[1:])
	if err != nil {
		return nil, fmt.Errorf("decode status list: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress status list: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress status list: %w", err)
	}
	return FromBytes(raw), nil
}
