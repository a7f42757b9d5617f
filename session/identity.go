package session

import "github.com/nadecore/nade/crypto"

// Identity is a 32-byte X25519 static keypair created once per install
// from a user-supplied seed, immutable for the process lifetime and
// preserved across session resets (spec.md §3's "Identity" data model).
type Identity struct {
	staticPriv [32]byte
	StaticPub  [32]byte
}

// NewIdentity clamps seed into a valid X25519 scalar and derives its
// public key.
func NewIdentity(seed [32]byte) (*Identity, error) {
	priv := seed
	crypto.ClampPrivate(&priv)

	pub, err := crypto.DerivePublic(priv)
	if err != nil {
		return nil, err
	}
	return &Identity{staticPriv: priv, StaticPub: pub}, nil
}

// Fingerprint returns the identity's static public key fingerprint, the
// value suitable for out-of-band verification between peers.
func (id *Identity) Fingerprint() string {
	return crypto.Fingerprint(id.StaticPub)
}
