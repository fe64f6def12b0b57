package keyseal

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/aristath/testscriptgen/internal/logging"
)

func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	return priv, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func decrypt(t *testing.T, priv *rsa.PrivateKey, value string) string {
	t.Helper()
	ciphertext, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		t.Fatalf("sealed value is not base64: %v", err)
	}
	plain, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		t.Fatalf("failed to decrypt: %v", err)
	}
	return string(plain)
}

func TestSealRoundTrip(t *testing.T) {
	priv, pub := testKey(t)
	s, err := New(pub, logging.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sealed := s.Seal("sk-abc123")
	if !sealed.Encrypted {
		t.Fatal("expected Encrypted = true")
	}
	if sealed.Value == "sk-abc123" {
		t.Fatal("sealed value must not equal plaintext")
	}
	if got := decrypt(t, priv, sealed.Value); got != "sk-abc123" {
		t.Errorf("decrypted = %q, want %q", got, "sk-abc123")
	}
}

func TestSealEmptyInput(t *testing.T) {
	_, pub := testKey(t)
	s, err := New(pub, logging.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, in := range []string{"", "   ", "\t\n"} {
		if got := s.Seal(in); got != (Sealed{}) {
			t.Errorf("Seal(%q) = %+v, want zero value", in, got)
		}
		got, err := s.SealStrict(in)
		if err != nil || got != (Sealed{}) {
			t.Errorf("SealStrict(%q) = %+v, %v", in, got, err)
		}
	}
}

func TestSealWithoutKeyPassesThrough(t *testing.T) {
	s, err := New("", logging.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := s.Seal("sk-plain")
	if got.Encrypted || got.Value != "sk-plain" {
		t.Errorf("Seal() = %+v, want plaintext passthrough", got)
	}

	if _, err := s.SealStrict("sk-plain"); err != ErrNoPublicKey {
		t.Errorf("SealStrict() error = %v, want ErrNoPublicKey", err)
	}
}

func TestSealTooLongFallsBack(t *testing.T) {
	_, pub := testKey(t)
	s, err := New(pub, logging.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// 2048-bit OAEP/SHA-1 can hold at most 214 bytes.
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'k'
	}

	got := s.Seal(string(long))
	if got.Encrypted || got.Value != string(long) {
		t.Error("expected plaintext fallback on encryption failure")
	}
	if _, err := s.SealStrict(string(long)); err == nil {
		t.Error("SealStrict() expected error for oversize input")
	}
}

func TestParsePublicKey(t *testing.T) {
	priv, pkix := testKey(t)
	pkcs1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey)}))

	tests := []struct {
		name    string
		pem     string
		wantErr bool
	}{
		{"pkix", pkix, false},
		{"pkcs1", pkcs1, false},
		{"garbage", "not a key", true},
		{"bad block", "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.pem)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePublicKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptAPIKey(t *testing.T) {
	priv, pub := testKey(t)

	sealed := EncryptAPIKey("sk-xyz", pub)
	if !sealed.Encrypted {
		t.Fatal("expected encryption with valid key")
	}
	if got := decrypt(t, priv, sealed.Value); got != "sk-xyz" {
		t.Errorf("decrypted = %q", got)
	}

	if got := EncryptAPIKey("sk-xyz", "broken"); got.Encrypted || got.Value != "sk-xyz" {
		t.Errorf("EncryptAPIKey with bad key = %+v, want passthrough", got)
	}
	if got := EncryptAPIKey("", pub); got != (Sealed{}) {
		t.Errorf("EncryptAPIKey(\"\") = %+v", got)
	}
}
