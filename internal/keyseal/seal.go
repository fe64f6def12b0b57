// Package keyseal encrypts LLM provider API keys with the backend's RSA public
// key before they leave the machine.
package keyseal

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aristath/testscriptgen/internal/logging"
)

// ErrNoPublicKey is reported when sealing is required but no key is configured.
var ErrNoPublicKey = errors.New("no public key configured")

// Sealed is the outcome of sealing a value. Encrypted is false when Value is the
// plaintext passed through.
type Sealed struct {
	Value     string
	Encrypted bool
}

// Sealer encrypts values with RSA-OAEP (SHA-1, matching the backend's
// decryption parameters) and base64-encodes the ciphertext.
type Sealer struct {
	key *rsa.PublicKey
	log *logrus.Entry
}

// New parses a PEM-encoded public key. An empty PEM yields a Sealer that passes
// values through unencrypted.
func New(publicKeyPEM string, log *logrus.Entry) (*Sealer, error) {
	if log == nil {
		log = logging.Component("keyseal")
	}
	s := &Sealer{log: log}
	if strings.TrimSpace(publicKeyPEM) == "" {
		return s, nil
	}

	key, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	s.key = key
	return s, nil
}

// ParsePublicKey accepts both PKIX ("PUBLIC KEY") and PKCS#1 ("RSA PUBLIC KEY") blocks.
func ParsePublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(publicKeyPEM)))
	if block == nil {
		return nil, fmt.Errorf("public key is not PEM encoded")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing PKCS#1 public key: %w", err)
		}
		return key, nil
	default:
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing public key: %w", err)
		}
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", parsed)
		}
		return key, nil
	}
}

// HasKey reports whether a public key is configured.
func (s *Sealer) HasKey() bool {
	return s != nil && s.key != nil
}

// Seal encrypts plaintext. Blank input returns an empty, unencrypted result
// without touching crypto. A missing key or an encryption failure degrades to
// the plaintext with a warning.
func (s *Sealer) Seal(plaintext string) Sealed {
	if strings.TrimSpace(plaintext) == "" {
		return Sealed{}
	}
	if !s.HasKey() {
		s.logger().Warn("no public key configured, API key sent unencrypted")
		return Sealed{Value: plaintext}
	}

	ciphertext, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, s.key, []byte(plaintext), nil)
	if err != nil {
		s.logger().WithError(err).Warn("API key encryption failed, sent unencrypted")
		return Sealed{Value: plaintext}
	}
	return Sealed{Value: base64.StdEncoding.EncodeToString(ciphertext), Encrypted: true}
}

// SealStrict is Seal without the plaintext fallback.
func (s *Sealer) SealStrict(plaintext string) (Sealed, error) {
	if strings.TrimSpace(plaintext) == "" {
		return Sealed{}, nil
	}
	if !s.HasKey() {
		return Sealed{}, ErrNoPublicKey
	}
	ciphertext, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, s.key, []byte(plaintext), nil)
	if err != nil {
		return Sealed{}, fmt.Errorf("encrypting API key: %w", err)
	}
	return Sealed{Value: base64.StdEncoding.EncodeToString(ciphertext), Encrypted: true}, nil
}

func (s *Sealer) logger() *logrus.Entry {
	if s == nil || s.log == nil {
		return logging.Component("keyseal")
	}
	return s.log
}

// EncryptAPIKey seals a key with the given PEM public key in one call.
func EncryptAPIKey(apiKey, publicKeyPEM string) Sealed {
	if apiKey == "" {
		return Sealed{}
	}
	s, err := New(publicKeyPEM, nil)
	if err != nil {
		logging.Component("keyseal").WithError(err).Warn("invalid public key, API key sent unencrypted")
		return Sealed{Value: apiKey}
	}
	return s.Seal(apiKey)
}
