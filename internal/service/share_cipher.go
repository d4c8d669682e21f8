package service

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
)

// shareAAD binds every envelope to its purpose. An envelope produced for any
// other context fails authentication even under the same key.
const shareAAD = "wallet-share"

// shareCipher encrypts user key shares with ChaCha20-Poly1305.
type shareCipher struct {
	aead cipher.AEAD
}

// NewShareCipher creates a ShareCipher from a 64-hex-character (256-bit) key.
func NewShareCipher(keyHex string) (ports.ShareCipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, apperror.ErrConfiguration(fmt.Errorf("encryption key is not valid hex: %w", err))
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, apperror.ErrConfiguration(
			fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key)))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, apperror.ErrConfiguration(err)
	}
	return &shareCipher{aead: aead}, nil
}

// Encrypt seals the plaintext share under a fresh random 96-bit nonce and
// returns the envelope with ciphertext, nonce, and tag as separate hex fields.
func (c *shareCipher) Encrypt(plaintext string) (domain.ShareEnvelope, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return domain.ShareEnvelope{}, apperror.InternalError(err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), []byte(shareAAD))
	tagStart := len(sealed) - c.aead.Overhead()

	return domain.ShareEnvelope{
		Ciphertext: hex.EncodeToString(sealed[:tagStart]),
		Nonce:      hex.EncodeToString(nonce),
		Tag:        hex.EncodeToString(sealed[tagStart:]),
	}, nil
}

// Decrypt opens an envelope. Any modification of ciphertext, nonce, or tag
// fails authentication and is reported as a decryption failure, never as
// garbled plaintext.
func (c *shareCipher) Decrypt(envelope domain.ShareEnvelope) (string, error) {
	ciphertext, err := hex.DecodeString(envelope.Ciphertext)
	if err != nil {
		return "", apperror.ErrDecryptionFailed(err)
	}
	nonce, err := hex.DecodeString(envelope.Nonce)
	if err != nil {
		return "", apperror.ErrDecryptionFailed(err)
	}
	tag, err := hex.DecodeString(envelope.Tag)
	if err != nil {
		return "", apperror.ErrDecryptionFailed(err)
	}
	if len(nonce) != chacha20poly1305.NonceSize || len(tag) != c.aead.Overhead() {
		return "", apperror.ErrDecryptionFailed(fmt.Errorf("malformed envelope"))
	}

	sealed := append(ciphertext, tag...)
	plaintext, err := c.aead.Open(nil, nonce, sealed, []byte(shareAAD))
	if err != nil {
		return "", apperror.ErrDecryptionFailed(err)
	}
	return string(plaintext), nil
}
