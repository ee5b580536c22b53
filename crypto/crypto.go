// Package crypto provides the handshake key-agreement and per-frame
// authenticated encryption collaborator described in §6. It is
// deliberately the only place a session's secret key material is
// handled; the session layer (package session) depends only on the
// Cipher interface below, never on a concrete algorithm.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

var (
	ErrDerive         = errors.New("crypto: key derivation failed")
	ErrDecrypt        = errors.New("crypto: decryption failed")
	ErrBadPeerKeyLen  = errors.New("crypto: peer public key has the wrong length")
)

// Cipher is the crypto module's external interface (§6): derive a
// shared key from a peer public value, then encrypt/decrypt payloads
// under an explicit nonce. Implementations must be safe for concurrent
// use by distinct Handshake instances but a single Handshake is only
// ever driven by its owning session's goroutine.
type Cipher interface {
	// ServerPublicBytes returns this server's ephemeral public key,
	// sent to the client in the NewSession frame.
	ServerPublicBytes() []byte

	// Signature optionally authenticates ServerPublicBytes; returned
	// verbatim in NewSession. A nil/empty signature is valid — the
	// handshake does not require it.
	Signature() []byte

	// Derive computes the shared symmetric key from the client's
	// public value (sent in the Pending frame).
	Derive(peerPublicBytes []byte) (sharedKey []byte, err error)

	// Encrypt seals plaintext under the derived key and the given
	// 16-byte (frame-level) iv, truncated/expanded internally to the
	// AEAD's nonce size.
	Encrypt(sharedKey, plaintext, iv []byte) (ciphertext []byte, err error)

	// Decrypt opens ciphertext sealed by Encrypt under the same key
	// and iv.
	Decrypt(sharedKey, ciphertext, iv []byte) (plaintext []byte, err error)
}

// X25519Cipher implements Cipher using Diffie-Hellman-style key
// agreement over Curve25519 and ChaCha20-Poly1305 AEAD encryption,
// both from the curve25519 and chacha20poly1305 subpackages of
// golang.org/x/crypto.
type X25519Cipher struct {
	privateKey [32]byte
	publicKey  [32]byte
	sig        []byte
}

// NewX25519Cipher generates a fresh ephemeral keypair for one
// handshake. A new Cipher is minted per session; keys are never
// reused across sessions (consistent with I6's "never reused" spirit
// applied to key material).
func NewX25519Cipher() (*X25519Cipher, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerive, err)
	}

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerive, err)
	}

	c := &X25519Cipher{privateKey: priv}
	copy(c.publicKey[:], pub)

	// The signature is not a real authentication scheme here (that is
	// the out-of-scope crypto-module concern §1 names); it is a
	// per-handshake random tag a client could use to detect a replayed
	// NewSession frame. uuid gives us a convenient random 16 bytes
	// without reaching for crypto/rand twice.
	sig := uuid.New()
	c.sig = sig[:]

	return c, nil
}

func (c *X25519Cipher) ServerPublicBytes() []byte {
	out := make([]byte, len(c.publicKey))
	copy(out, c.publicKey[:])
	return out
}

func (c *X25519Cipher) Signature() []byte {
	out := make([]byte, len(c.sig))
	copy(out, c.sig)
	return out
}

func (c *X25519Cipher) Derive(peerPublicBytes []byte) ([]byte, error) {
	if len(peerPublicBytes) != 32 {
		return nil, ErrBadPeerKeyLen
	}
	shared, err := curve25519.X25519(c.privateKey[:], peerPublicBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerive, err)
	}
	return shared, nil
}

func (c *X25519Cipher) Encrypt(sharedKey, plaintext, iv []byte) ([]byte, error) {
	aead, err := newAEAD(sharedKey)
	if err != nil {
		return nil, err
	}
	nonce := nonceFromIV(iv, aead.NonceSize())
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func (c *X25519Cipher) Decrypt(sharedKey, ciphertext, iv []byte) ([]byte, error) {
	aead, err := newAEAD(sharedKey)
	if err != nil {
		return nil, err
	}
	nonce := nonceFromIV(iv, aead.NonceSize())
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

func newAEAD(sharedKey []byte) (cipher.AEAD, error) {
	key := deriveAEADKey(sharedKey)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerive, err)
	}
	return aead, nil
}

// deriveAEADKey folds an arbitrary-length shared secret (32 bytes from
// X25519 in practice) down to chacha20poly1305.KeySize via a simple
// XOR-fold. A production KDF (HKDF) would normally sit here; that
// refinement is left to the out-of-scope crypto module per spec §1 —
// this package only needs to satisfy the Cipher contract deterministically.
func deriveAEADKey(sharedKey []byte) []byte {
	key := make([]byte, chacha20poly1305.KeySize)
	for i, b := range sharedKey {
		key[i%len(key)] ^= b
	}
	return key
}

// nonceFromIV adapts the frame-level 16-byte IV (§4.1) to whatever
// nonce size the AEAD requires (12 bytes for chacha20poly1305).
func nonceFromIV(iv []byte, nonceSize int) []byte {
	nonce := make([]byte, nonceSize)
	for i := 0; i < nonceSize && i < len(iv); i++ {
		nonce[i] = iv[i]
	}
	return nonce
}
