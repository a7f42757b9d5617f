// Package crypto provides the four primitive operations NADE's handshake
// and AEAD framing are built from: X25519 scalar multiplication,
// HKDF-SHA256, ChaCha20-Poly1305 AEAD, and OS entropy. No algorithmic
// freedom is taken here — these are standard, auditable primitives from
// golang.org/x/crypto, grounded the same way the Noise-handshake
// implementations in the retrieval pack (wireguard-go, noisysockets,
// VeilDeploy) use them.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/nadecore/nade/errs"
)

const (
	KeySize   = 32
	NonceSize = chacha20poly1305.NonceSize // 12
	TagSize   = chacha20poly1305.Overhead  // 16
)

// ClampPrivate applies the standard X25519 clamp in place.
func ClampPrivate(priv *[KeySize]byte) {
	priv[0] &= 0xF8
	priv[31] = (priv[31] & 0x7F) | 0x40
}

// DerivePublic computes the X25519 base-point multiplication of a
// pre-clamped private scalar.
func DerivePublic(priv [KeySize]byte) ([KeySize]byte, error) {
	var pub [KeySize]byte
	out, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, errs.Wrap(errs.KeyExchangeFailed, "derive_public", err)
	}
	copy(pub[:], out)
	return pub, nil
}

// X25519 performs scalar multiplication and rejects a low-order result
// (an all-zero shared secret), per spec.
func X25519(priv, pub [KeySize]byte) ([KeySize]byte, error) {
	var shared [KeySize]byte
	out, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return shared, errs.Wrap(errs.KeyExchangeFailed, "x25519", err)
	}
	copy(shared[:], out)
	if subtle.ConstantTimeCompare(shared[:], make([]byte, KeySize)) == 1 {
		return shared, errs.New(errs.KeyExchangeFailed, "x25519 produced a zero shared secret")
	}
	return shared, nil
}

// HKDFSHA256 implements RFC 5869 HKDF-Extract-then-Expand over SHA-256,
// returning exactly L bytes of output keying material. L is bounded by
// HKDF's own 255*HashLen limit.
func HKDFSHA256(ikm, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 || length > 255*sha256.Size {
		return nil, errs.New(errs.KeyExchangeFailed, "hkdf length out of bounds")
	}
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errs.Wrap(errs.KeyExchangeFailed, "hkdf expand", err)
	}
	return out, nil
}

// Seal performs ChaCha20-Poly1305 (IETF, 96-bit nonce) AEAD sealing,
// returning ciphertext||tag.
func Seal(key [KeySize]byte, nonce [NonceSize]byte, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errs.Wrap(errs.BadArgument, "aead_seal: new cipher", err)
	}
	return aead.Seal(nil, nonce[:], plaintext, ad), nil
}

// Open performs ChaCha20-Poly1305 AEAD opening of ciphertext||tag,
// returning errs.AuthFail on any authentication failure.
func Open(key [KeySize]byte, nonce [NonceSize]byte, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errs.Wrap(errs.BadArgument, "aead_open: new cipher", err)
	}
	pt, err := aead.Open(nil, nonce[:], ciphertext, ad)
	if err != nil {
		return nil, errs.Wrap(errs.AuthFail, "aead_open", err)
	}
	return pt, nil
}

// CSPRNG returns n bytes of OS entropy. Failure here is fatal to whatever
// operation requested the randomness (ephemeral key generation, most
// commonly), per spec.
func CSPRNG(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, errs.Wrap(errs.EntropyFailure, "csprng", err)
	}
	return buf, nil
}

// Fingerprint returns the uppercase-hex SHA-256 digest of a public key.
// This is not part of spec.md's wire format; it is a convenience for
// out-of-band verification, carried over from the original source's
// handshake_get_fingerprint.
func Fingerprint(pub [KeySize]byte) string {
	sum := sha256.Sum256(pub[:])
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// StaticPubPrefix returns the first 16 bytes of SHA-256(pub), the
// static_pub_sha256_prefix field carried in the handshake payload.
func StaticPubPrefix(pub [KeySize]byte) [16]byte {
	sum := sha256.Sum256(pub[:])
	var out [16]byte
	copy(out[:], sum[:16])
	return out
}
