package credstore

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinSecretBytes is the minimum length of raw key material accepted by [NewKeySealer].
const MinSecretBytes = 32

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Sealer encrypts credential blobs at rest. additionalData binds a ciphertext
// to the storage key it was written under.
type Sealer interface {
	Seal(plaintext, additionalData []byte) ([]byte, error)
	Open(ciphertext, additionalData []byte) ([]byte, error)
}

// AEADSealer seals with XChaCha20-Poly1305; the random 24-byte nonce is
// prepended to the ciphertext.
type AEADSealer struct {
	key [chacha20poly1305.KeySize]byte
}

// NewKeySealer derives a sealing key from secret with HKDF-SHA256, using the
// namespace as context so two namespaces never share a key.
func NewKeySealer(secret []byte, namespace string) (*AEADSealer, error) {
	if len(secret) < MinSecretBytes {
		return nil, errors.New("credential secret too short")
	}

	s := &AEADSealer{}
	kdf := hkdf.New(sha256.New, secret, nil, []byte("goSession credentials "+namespace))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPassphraseSealer derives a sealing key from a human passphrase with
// Argon2id. The salt is derived from the namespace, so the same passphrase
// and namespace always open the same store.
func NewPassphraseSealer(passphrase, namespace string) (*AEADSealer, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}

	salt := sha256.Sum256([]byte("goSession:" + namespace))
	key := argon2.IDKey([]byte(passphrase), salt[:16], argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)

	s := &AEADSealer{}
	copy(s.key[:], key)
	return s, nil
}

func (s *AEADSealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return aead.Seal(out, out, plaintext, additionalData), nil
}

func (s *AEADSealer) Open(ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, body := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, body, additionalData)
}
