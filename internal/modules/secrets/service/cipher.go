package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"signal_bot/internal/models"
)

const sealedPrefix = "enc:v1:"

var ErrSealed = errors.New("secrets: cannot open sealed value")

// Cipher seals credentials with XChaCha20-Poly1305 under a key derived from
// the configured secret. The chat id is bound as associated data, so a value
// copied to another chat does not open.
type Cipher struct {
	key []byte
}

func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secrets key", models.ErrConfigValidation)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("signal_bot session credentials"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return &Cipher{key: key}, nil
}

func (c *Cipher) Seal(_ context.Context, chatID int64, creds models.Credentials) (out models.Credentials, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cipher.Seal: %w", err)
		}
	}()
	if out.APIKey, err = c.seal(chatID, creds.APIKey); err != nil {
		return models.Credentials{}, err
	}
	if out.APISecret, err = c.seal(chatID, creds.APISecret); err != nil {
		return models.Credentials{}, err
	}
	return out, nil
}

// Open reverses Seal. Values without the sealed prefix are returned as they
// are so stores written before sealing was enabled still load.
func (c *Cipher) Open(_ context.Context, chatID int64, creds models.Credentials) (out models.Credentials, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cipher.Open: %w", err)
		}
	}()
	if out.APIKey, err = c.open(chatID, creds.APIKey); err != nil {
		return models.Credentials{}, err
	}
	if out.APISecret, err = c.open(chatID, creds.APISecret); err != nil {
		return models.Credentials{}, err
	}
	return out, nil
}

func (c *Cipher) seal(chatID int64, plain string) (string, error) {
	if plain == "" || strings.HasPrefix(plain, sealedPrefix) {
		return plain, nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), ad(chatID))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) open(chatID int64, value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealed, err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: short value", ErrSealed)
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], ad(chatID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealed, err)
	}
	return string(plain), nil
}

func ad(chatID int64) []byte {
	return []byte(strconv.FormatInt(chatID, 10))
}
