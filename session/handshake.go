package session

import (
	"bytes"
	"crypto/sha256"

	"github.com/nadecore/nade/crypto"
	"github.com/nadecore/nade/errs"
	"github.com/nadecore/nade/frame"
)

// Handshake payload layout (spec.md §4.7.1), 84 bytes total:
//
//	version[1] role[1] capabilities[1] reserved[1]
//	ephemeral_pub[32] static_pub[32] static_pub_sha256_prefix[16]
const (
	handshakeVersion = 1

	hsOffVersion      = 0
	hsOffRole         = 1
	hsOffCapabilities = 2
	hsOffReserved     = 3
	hsOffEphPub       = 4
	hsOffStaticPub    = hsOffEphPub + 32
	hsOffPrefix       = hsOffStaticPub + 32
)

// buildHandshakePayload assembles this session's outbound handshake
// body from its current ephemeral key and bound identity.
func (s *Session) buildHandshakePayload() [frame.HandshakeBodyLen]byte {
	var body [frame.HandshakeBodyLen]byte
	body[hsOffVersion] = handshakeVersion
	body[hsOffRole] = byte(s.role)
	body[hsOffCapabilities] = s.opts.capabilities()
	copy(body[hsOffEphPub:hsOffEphPub+32], s.ephPub[:])
	copy(body[hsOffStaticPub:hsOffStaticPub+32], s.identity.StaticPub[:])
	prefix := crypto.StaticPubPrefix(s.identity.StaticPub)
	copy(body[hsOffPrefix:hsOffPrefix+16], prefix[:])
	return body
}

type parsedHandshake struct {
	role         Role
	capabilities byte
	ephPub       [32]byte
	staticPub    [32]byte
}

// parseHandshakePayload validates a peer handshake body: version must
// match, and the embedded sha256 prefix must match the embedded static
// key (guards against a corrupted or truncated static key surviving
// frame-level integrity checks, since Handshake frames are never AEAD
// sealed).
func parseHandshakePayload(body [frame.HandshakeBodyLen]byte) (parsedHandshake, error) {
	var p parsedHandshake
	if body[hsOffVersion] != handshakeVersion {
		return p, errs.New(errs.KeyExchangeFailed, "session: unsupported handshake version")
	}
	p.role = Role(body[hsOffRole])
	if p.role != RoleClient && p.role != RoleServer {
		return p, errs.New(errs.KeyExchangeFailed, "session: invalid handshake role")
	}
	p.capabilities = body[hsOffCapabilities]
	copy(p.ephPub[:], body[hsOffEphPub:hsOffEphPub+32])
	copy(p.staticPub[:], body[hsOffStaticPub:hsOffStaticPub+32])

	sum := sha256.Sum256(p.staticPub[:])
	if !bytes.Equal(sum[:16], body[hsOffPrefix:hsOffPrefix+16]) {
		return p, errs.New(errs.KeyExchangeFailed, "session: static key prefix mismatch")
	}
	return p, nil
}

// hkdfSalt and hkdfInfo are the fixed context strings for the session
// key schedule (spec.md §4.7.3).
var (
	hkdfSalt = []byte("NADEv1")
	hkdfInfo = []byte("NADE_SESS")
)

// deriveKeysLocked runs the triadic X25519 key schedule from this
// session's own ephemeral/static keys and the peer's handshake payload,
// assigning tx/rx keys and nonce bases. Both roles compute byte-
// identical intermediate material: ee is symmetric by construction, and
// the other two DH terms are each computed as one side's ephemeral
// against the other's static, which commutes regardless of which side
// is labelled client or server.
func (s *Session) deriveKeysLocked(peer parsedHandshake) error {
	ee, err := crypto.X25519(s.ephPriv, peer.ephPub)
	if err != nil {
		return err
	}

	var es, se [32]byte // es: client-ephemeral x server-static; se: server-ephemeral x client-static
	if s.role == RoleClient {
		es, err = crypto.X25519(s.ephPriv, peer.staticPub)
		if err != nil {
			return err
		}
		se, err = crypto.X25519(s.identity.staticPriv, peer.ephPub)
		if err != nil {
			return err
		}
	} else {
		se, err = crypto.X25519(s.ephPriv, peer.staticPub)
		if err != nil {
			return err
		}
		es, err = crypto.X25519(s.identity.staticPriv, peer.ephPub)
		if err != nil {
			return err
		}
	}

	material := make([]byte, 0, 96)
	material = append(material, ee[:]...)
	material = append(material, es[:]...)
	material = append(material, se[:]...)

	okm, err := crypto.HKDFSHA256(material, hkdfSalt, hkdfInfo, 96)
	if err != nil {
		return err
	}

	var clientKey, serverKey [32]byte
	var clientNonce, serverNonce [12]byte
	copy(clientKey[:], okm[0:32])
	copy(serverKey[:], okm[32:64])
	copy(clientNonce[:], okm[64:76])
	copy(serverNonce[:], okm[76:88])

	if s.role == RoleClient {
		s.txKey, s.txNonceBase = clientKey, clientNonce
		s.rxKey, s.rxNonceBase = serverKey, serverNonce
	} else {
		s.txKey, s.txNonceBase = serverKey, serverNonce
		s.rxKey, s.rxNonceBase = clientKey, clientNonce
	}

	s.peerEph = peer.ephPub
	s.peerStatic = peer.staticPub
	s.peerSendsEncrypt = peer.capabilities&0x01 != 0
	s.peerAcceptsEncrypt = peer.capabilities&0x02 != 0
	return nil
}

// handleHandshakeLocked processes an inbound Handshake frame. Keys are
// only (re-)derived while still in StateReady: a duplicate or replayed
// handshake frame arriving after StateKeysDerived must not reset
// counters or regenerate keys, since that would let a replayed frame
// desynchronise an already-progressing session.
func (s *Session) handleHandshakeLocked(body [frame.HandshakeBodyLen]byte) error {
	peer, err := parseHandshakePayload(body)
	if err != nil {
		s.logger.Warn("rejected peer handshake", "err", err)
		return err
	}
	if s.expectedPeerStatic != nil && !bytes.Equal(s.expectedPeerStatic[:], peer.staticPub[:]) {
		s.logger.Warn("peer static key does not match pinned key")
		return errs.New(errs.KeyExchangeFailed, "session: peer static key pinning mismatch")
	}

	if s.state != StateReady {
		return nil
	}

	if err := s.deriveKeysLocked(peer); err != nil {
		return err
	}
	s.state = StateKeysDerived
	s.logger.Info("handshake keys derived", "peer_fingerprint", crypto.Fingerprint(peer.staticPub))
	return nil
}
