package envelope_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/mkarpov/otpvault/internal/envelope"
	"github.com/mkarpov/otpvault/internal/vaulterr"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, envelope.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newCodec(t *testing.T, key []byte) *envelope.Codec {
	t.Helper()
	c, err := envelope.New(key, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newCodec(t, testKey(t))

	in := map[string]any{"name": "GitHub", "digits": float64(6)}
	raw, err := c.Encrypt(in)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !envelope.IsEncrypted(raw) {
		t.Fatalf("envelope not recognized as encrypted: %q", raw)
	}

	var out map[string]any
	if err := c.Decrypt(raw, &out); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if out["name"] != in["name"] || out["digits"] != in["digits"] {
		t.Errorf("round trip mismatch: got %v, want %v", out, in)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c := newCodec(t, testKey(t))

	a, err := c.Encrypt("same value")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt("same value")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same value produced identical envelopes")
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	c := newCodec(t, testKey(t))

	raw, err := c.Encrypt([]string{"a", "b"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	parts := strings.Split(raw, ":")
	sealed, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}

	// Flip one bit at a time; every position must fail authentication.
	for i := range sealed {
		mutated := make([]byte, len(sealed))
		copy(mutated, sealed)
		mutated[i] ^= 0x01
		tampered := parts[0] + ":" + parts[1] + ":" + base64.StdEncoding.EncodeToString(mutated)

		var out []string
		err := c.Decrypt(tampered, &out)
		if err == nil {
			t.Fatalf("bit flip at byte %d went undetected", i)
		}
		if kind := vaulterr.KindOf(err); kind != vaulterr.KindCrypto {
			t.Fatalf("bit flip at byte %d: kind = %v, want crypto", i, kind)
		}
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	c := newCodec(t, testKey(t))
	raw, err := c.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	other := testKey(t)
	other[0] ^= 0xFF
	c2 := newCodec(t, other)

	var out string
	err = c2.Decrypt(raw, &out)
	if kind := vaulterr.KindOf(err); kind != vaulterr.KindCrypto {
		t.Errorf("wrong key: kind = %v (err %v), want crypto", kind, err)
	}
}

func TestDecryptRejectsUnsupportedVersion(t *testing.T) {
	c := newCodec(t, testKey(t))

	var out any
	err := c.Decrypt("v2:AAAA:BBBB", &out)
	if kind := vaulterr.KindOf(err); kind != vaulterr.KindValidation {
		t.Errorf("v2 envelope: kind = %v (err %v), want validation", kind, err)
	}
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	c := newCodec(t, testKey(t))

	var out any
	err := c.Decrypt("v1:onlyonepart", &out)
	if kind := vaulterr.KindOf(err); kind != vaulterr.KindValidation {
		t.Errorf("2-part envelope: kind = %v (err %v), want validation", kind, err)
	}

	err = c.Decrypt("v1:a:b:c", &out)
	if kind := vaulterr.KindOf(err); kind != vaulterr.KindValidation {
		t.Errorf("4-part envelope: kind = %v (err %v), want validation", kind, err)
	}
}

func TestPlaintextModeRoundTrip(t *testing.T) {
	c := newCodec(t, nil)

	raw, err := c.Encrypt(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if envelope.IsEncrypted(raw) {
		t.Fatalf("plaintext mode produced an envelope: %q", raw)
	}

	var out map[string]string
	if err := c.Decrypt(raw, &out); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if out["k"] != "v" {
		t.Errorf("round trip mismatch: %v", out)
	}
}

func TestDecryptEncryptedWithoutKey(t *testing.T) {
	enc := newCodec(t, testKey(t))
	raw, err := enc.Encrypt("x")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	plain := newCodec(t, nil)
	var out string
	err = plain.Decrypt(raw, &out)
	if kind := vaulterr.KindOf(err); kind != vaulterr.KindConfig {
		t.Errorf("decrypt without key: kind = %v (err %v), want config", kind, err)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := envelope.New([]byte("too short"), nil); err == nil {
		t.Error("expected error for short key")
	}
}

func TestDeriveKey(t *testing.T) {
	if envelope.DeriveKey("") != nil {
		t.Error("empty config should derive no key")
	}

	raw := make([]byte, envelope.KeySize)
	encoded := base64.StdEncoding.EncodeToString(raw)
	if got := envelope.DeriveKey(encoded); len(got) != envelope.KeySize {
		t.Errorf("base64 key: len = %d", len(got))
	}

	passA := envelope.DeriveKey("correct horse battery staple")
	passB := envelope.DeriveKey("correct horse battery staple")
	if len(passA) != envelope.KeySize {
		t.Errorf("passphrase key: len = %d", len(passA))
	}
	if string(passA) != string(passB) {
		t.Error("passphrase derivation is not deterministic")
	}
}
