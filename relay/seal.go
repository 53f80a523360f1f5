package relay

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	apperrors "session-lab/errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keySize = chacha20poly1305.KeySize

// SessionKey encrypts payloads of one secure session. It is generated by
// the session creator and handed to members wrapped under the shared secret,
// so the relay only ever sees ciphertext.
type SessionKey [keySize]byte

func NewSessionKey() (*SessionKey, error) {
	var k SessionKey
	if _, err := rand.Read(k[:]); err != nil {
		return nil, err
	}
	return &k, nil
}

// Sealer wraps session keys with a key derived from the shared secret.
type Sealer struct {
	wrap SessionKey
}

func NewSealer(sharedSecret string) *Sealer {
	var s Sealer
	r := hkdf.New(sha256.New, []byte(sharedSecret), nil, []byte("session-lab|wrap"))
	_, _ = io.ReadFull(r, s.wrap[:])
	return &s
}

func (s *Sealer) WrapKey(k *SessionKey) ([]byte, error) {
	return seal(&s.wrap, k[:])
}

func (s *Sealer) UnwrapKey(box []byte) (*SessionKey, error) {
	raw, err := open(&s.wrap, box)
	if err != nil {
		return nil, err
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("%w: unexpected length %d", apperrors.ErrInvalidSessionKey, len(raw))
	}
	var k SessionKey
	copy(k[:], raw)
	return &k, nil
}

func (k *SessionKey) Seal(plaintext []byte) ([]byte, error) {
	return seal(k, plaintext)
}

func (k *SessionKey) Open(box []byte) ([]byte, error) {
	return open(k, box)
}

// seal returns nonce || ciphertext.
func seal(key *SessionKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key *SessionKey, box []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	if len(box) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: sealed box too short", apperrors.ErrInvalidSessionKey)
	}
	nonce, ciphertext := box[:aead.NonceSize()], box[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSessionKey, err)
	}
	return plaintext, nil
}
