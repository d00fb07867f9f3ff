// Package envelope encrypts and decrypts the versioned authenticated
// envelope the vault wraps around every persisted JSON value.
//
// The wire format is "v1:<base64 nonce>:<base64 ciphertext+tag>" using
// AES-256-GCM. When no key is configured the codec degrades to plain
// JSON in both directions; data written while a key was configured is
// unreadable without that key, which is a documented limitation rather
// than something the codec tries to work around.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/mkarpov/otpvault/internal/vaulterr"
)

const (
	// Version is the only envelope format currently produced or accepted.
	Version = "v1"

	// KeySize is the AES-256 key size in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce size in bytes.
	NonceSize = 12

	prefix = Version + ":"

	// Passphrase derivation parameters (PBKDF2-SHA256).
	kdfIterations = 210000
	kdfSalt       = "otpvault.envelope.v1"
)

// Codec wraps values in authenticated envelopes. A Codec with no key
// operates in plaintext mode.
type Codec struct {
	key      []byte
	log      *zap.Logger
	warnOnce sync.Once
}

// New creates a codec. key may be nil for plaintext mode; otherwise it
// must be exactly KeySize bytes.
func New(key []byte, log *zap.Logger) (*Codec, error) {
	if key != nil && len(key) != KeySize {
		return nil, vaulterr.Newf(vaulterr.KindConfig, "encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Codec{key: key, log: log}, nil
}

// DeriveKey turns the configured key string into key material. A value
// that decodes from base64 to exactly KeySize bytes is used directly;
// anything else is treated as a passphrase and stretched with PBKDF2.
// An empty value yields nil, selecting plaintext mode.
func DeriveKey(configured string) []byte {
	if configured == "" {
		return nil
	}
	if raw, err := base64.StdEncoding.DecodeString(configured); err == nil && len(raw) == KeySize {
		return raw
	}
	return pbkdf2.Key([]byte(configured), []byte(kdfSalt), kdfIterations, KeySize, sha256.New)
}

// Enabled reports whether the codec has a key configured.
func (c *Codec) Enabled() bool {
	return c.key != nil
}

// IsEncrypted reports whether raw carries the envelope version prefix.
func IsEncrypted(raw string) bool {
	return strings.HasPrefix(raw, prefix)
}

// Encrypt serializes v and seals it in a fresh envelope. Without a key
// it returns the plain serialization and logs a warning once.
func (c *Codec) Encrypt(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.KindValidation, "serialize value", err)
	}
	if c.key == nil {
		c.warnPlaintext()
		return string(plain), nil
	}

	aead, err := c.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", vaulterr.Wrap(vaulterr.KindCrypto, "generate nonce", err)
	}
	sealed := aead.Seal(nil, nonce, plain, nil)

	return prefix +
		base64.StdEncoding.EncodeToString(nonce) + ":" +
		base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope into out. Plain (non-envelope) input is
// parsed as JSON directly, preserving compatibility with data written
// before encryption was enabled.
func (c *Codec) Decrypt(raw string, out any) error {
	if !IsEncrypted(raw) {
		if strings.HasPrefix(raw, "v") && looksVersioned(raw) {
			return vaulterr.Newf(vaulterr.KindValidation, "unsupported envelope version %q", versionOf(raw))
		}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return vaulterr.Wrap(vaulterr.KindValidation, "parse plaintext value", err)
		}
		return nil
	}
	if c.key == nil {
		return vaulterr.New(vaulterr.KindConfig, "data is encrypted but no encryption key is configured")
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return vaulterr.Newf(vaulterr.KindValidation, "malformed envelope: expected 3 parts, got %d", len(parts))
	}
	if parts[0] != Version {
		return vaulterr.Newf(vaulterr.KindValidation, "unsupported envelope version %q", parts[0])
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return vaulterr.Wrap(vaulterr.KindValidation, "decode nonce", err)
	}
	if len(nonce) != NonceSize {
		return vaulterr.Newf(vaulterr.KindValidation, "invalid nonce length %d", len(nonce))
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return vaulterr.Wrap(vaulterr.KindValidation, "decode ciphertext", err)
	}

	aead, err := c.aead()
	if err != nil {
		return err
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return vaulterr.Wrap(vaulterr.KindCrypto, "authentication failed", err)
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return vaulterr.Wrap(vaulterr.KindValidation, "parse decrypted value", err)
	}
	return nil
}

func (c *Codec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.KindCrypto, "create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.KindCrypto, "create AEAD", err)
	}
	return aead, nil
}

func (c *Codec) warnPlaintext() {
	c.warnOnce.Do(func() {
		c.log.Warn("no encryption key configured, persisting secrets in plaintext")
	})
}

// looksVersioned reports whether raw resembles a "vN:..." envelope of
// some version other than the supported one. Plain JSON never matches
// because it starts with '{' or '['.
func looksVersioned(raw string) bool {
	i := strings.IndexByte(raw, ':')
	if i < 2 || i > 4 {
		return false
	}
	for _, r := range raw[1:i] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func versionOf(raw string) string {
	if i := strings.IndexByte(raw, ':'); i > 0 {
		return raw[:i]
	}
	return raw
}
