package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	boxVersion = "v1"
	keySize    = 32
	nonceSize  = 24
)

var errDecrypt = errors.New("decrypt: message corrupted or wrong key")

// Box seals token payloads with NaCl secretbox. Output is "v1:" + base64(nonce || box).
type Box struct {
	key [keySize]byte
}

// NewBox accepts a base64 encoded 32 byte key.
func NewBox(encodedKey string) (*Box, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("encryption key must decode to %d bytes, got %d", keySize, len(raw))
	}

	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

func (b *Box) Seal(plaintext []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &b.key)
	return boxVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) Open(encoded string) ([]byte, error) {
	version, payload, ok := strings.Cut(encoded, ":")
	if !ok || version != boxVersion {
		return nil, fmt.Errorf("unsupported payload version %q", version)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, errDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, errDecrypt
	}
	return plain, nil
}
