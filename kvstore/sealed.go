package kvstore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of the sealing key in bytes.
const KeySize = chacha20poly1305.KeySize

// SealedStore encrypts every value with XChaCha20-Poly1305 before handing it to the wrapped store.
// The namespace and key are bound as additional data, so a value copied to another slot fails to open.
type SealedStore struct {
	inner Store
	key   *memguard.Enclave
}

var _ Store = (*SealedStore)(nil)

// NewSealed wraps inner. The key is moved into a memguard enclave and the caller's slice is wiped.
func NewSealed(inner Store, key []byte) (*SealedStore, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid sealing key size: got %d, want %d", len(key), KeySize)
	}
	return &SealedStore{inner: inner, key: memguard.NewEnclave(key)}, nil
}

func sealingAAD(namespace, key string) []byte {
	return []byte(namespace + ":" + key)
}

func (s *SealedStore) seal(namespace, key, value string) (string, error) {
	buf, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("opening sealing key: %w", err)
	}
	defer buf.Destroy()

	aead, err := chacha20poly1305.NewX(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), sealingAAD(namespace, key))
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (s *SealedStore) open(namespace, key, stored string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decoding sealed value: %w", err)
	}

	buf, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("opening sealing key: %w", err)
	}
	defer buf.Destroy()

	aead, err := chacha20poly1305.NewX(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("sealed value shorter than nonce size")
	}

	nonce, cipherText := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, cipherText, sealingAAD(namespace, key))
	if err != nil {
		return "", fmt.Errorf("decrypting value: %w", err)
	}
	return string(plain), nil
}

func (s *SealedStore) Get(namespace, key string) (string, error) {
	stored, err := s.inner.Get(namespace, key)
	if err != nil {
		return "", err
	}
	return s.open(namespace, key, stored)
}

func (s *SealedStore) PutMany(namespace string, values map[string]string) error {
	sealed := make(map[string]string, len(values))
	for k, v := range values {
		sv, err := s.seal(namespace, k, v)
		if err != nil {
			return err
		}
		sealed[k] = sv
	}
	return s.inner.PutMany(namespace, sealed)
}

func (s *SealedStore) Delete(namespace string, keys ...string) error {
	return s.inner.Delete(namespace, keys...)
}

func (s *SealedStore) DeleteNamespace(namespace string) error {
	return s.inner.DeleteNamespace(namespace)
}

func (s *SealedStore) Namespaces() ([]string, error) {
	return s.inner.Namespaces()
}

func (s *SealedStore) Close() error {
	return s.inner.Close()
}
