// Package idcodec turns internal record ids into opaque tokens and back.
//
// Tokens are sealed with XChaCha20-Poly1305 under a key derived from the
// shared secret, so they cannot be forged, enumerated or altered without it.
// A fresh nonce is drawn per token: encoding the same id twice yields
// different tokens that both decode to it.
package idcodec

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	payloadSize = 8
	sealedSize  = chacha20poly1305.NonceSizeX + payloadSize + chacha20poly1305.Overhead

	keyInfo = "fleetops/idcodec/v1"
)

var (
	// ErrInvalidToken is returned for every token that cannot be decoded. It
	// does not distinguish corruption from a foreign secret.
	ErrInvalidToken = errors.New("invalid id token")
	// ErrInvalidID is returned when encoding a non-positive id.
	ErrInvalidID = errors.New("id must be positive")

	errEmptySecret = errors.New("idcodec: secret is required")
)

var encoding = base64.RawURLEncoding

// Codec encodes and decodes id tokens. It is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
	ad   []byte
	rand io.Reader
}

// Option configures a Codec.
type Option func(*Codec)

// WithPurpose binds tokens to a purpose label; a token sealed for one purpose
// does not decode under another.
func WithPurpose(purpose string) Option {
	return func(c *Codec) {
		c.ad = []byte(strings.TrimSpace(purpose))
	}
}

// WithRandom overrides the nonce source.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) {
		if r != nil {
			c.rand = r
		}
	}
}

// New derives the token key from secret.
func New(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("idcodec: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("idcodec: init cipher: %w", err)
	}
	c := &Codec{aead: aead, rand: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode seals a positive id into a URL-safe token.
func (c *Codec) Encode(id int64) (string, error) {
	if id <= 0 {
		return "", ErrInvalidID
	}
	buf := make([]byte, chacha20poly1305.NonceSizeX, sealedSize)
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", fmt.Errorf("idcodec: nonce: %w", err)
	}
	var payload [payloadSize]byte
	binary.BigEndian.PutUint64(payload[:], uint64(id))
	sealed := c.aead.Seal(buf, buf, payload[:], c.ad)
	return encoding.EncodeToString(sealed), nil
}

// MustEncode is Encode for ids already known to be positive, such as values
// read back from storage.
func (c *Codec) MustEncode(id int64) string {
	token, err := c.Encode(id)
	if err != nil {
		panic(fmt.Sprintf("idcodec.MustEncode(%d): %v", id, err))
	}
	return token
}

// Decode opens a token produced by Encode with the same secret and purpose.
func (c *Codec) Decode(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if encoding.DecodedLen(len(token)) != sealedSize {
		return 0, ErrInvalidToken
	}
	raw, err := encoding.DecodeString(token)
	if err != nil || len(raw) != sealedSize {
		return 0, ErrInvalidToken
	}
	nonce, sealed := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	payload, err := c.aead.Open(nil, nonce, sealed, c.ad)
	if err != nil || len(payload) != payloadSize {
		return 0, ErrInvalidToken
	}
	id := int64(binary.BigEndian.Uint64(payload))
	if id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
