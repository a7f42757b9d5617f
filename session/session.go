// Package session implements the session engine (C7): the handshake
// state machine, nonce-counter discipline, and the outbound/inbound
// pipelines that compose every other package under one mutex.
//
// Grounded on the teacher's own "one struct owns everything, one mutex
// guards it" shape (demodulator_state_s plus its channel-wide mutex in
// audio.go), generalised per spec.md §9's redesign guidance: the
// reference's ten-flag bag becomes the four-state State machine in
// state.go plus two capability bits and one hangup-observation bit
// carried directly as fields here.
package session

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nadecore/nade/codec"
	"github.com/nadecore/nade/crypto"
	"github.com/nadecore/nade/errs"
	"github.com/nadecore/nade/frame"
	"github.com/nadecore/nade/modem"
	"github.com/nadecore/nade/ring"
	"github.com/nadecore/nade/rs"
)

// Ring capacities, spec.md §3.
const (
	MicRingCapacity       = 65536
	SpeakerRingCapacity   = 65536
	OutgoingRingCapacity  = 262144
	IncomingRingCapacity  = 262144
	FSKModPCMCapacity     = 32768
	FSKDemodBytesCapacity = 8192
)

// Pipeline timing, spec.md §4.7.2 and §6.
const (
	HandshakeResendInterval = 500 * time.Millisecond
	KeepaliveInterval       = 1000 * time.Millisecond
)

// audioPayloadLen is the fixed marshaled length of an AudioPayload
// built from one of this session's own mic frames: kind(1) + header(7)
// + one full ADPCM block (codec.EncodedBlockLen). Only frames of
// exactly this length are candidates for the optional RS stage, which
// distinguishes them from the 1-byte Keepalive/Hangup payloads that
// are never RS-coded.
const audioPayloadLen = 1 + frame.AudioHeaderLen + codec.EncodedBlockLen

// Session is the mutable state for one call (spec.md §3's "Session").
// One session_mutex guards every field and the pipeline operations
// that touch them; each ring guards itself separately, and no ring
// lock is ever held across a call into another package.
type Session struct {
	mu sync.Mutex

	identity *Identity
	opts     Options
	logger   *log.Logger

	role  Role
	state State

	ephPriv, ephPub       [32]byte
	peerStatic, peerEph   [32]byte
	expectedPeerStatic    *[32]byte
	peerSendsEncrypt      bool
	peerAcceptsEncrypt    bool
	remoteHangupRequested bool

	txKey, rxKey             [32]byte
	txNonceBase, rxNonceBase [12]byte
	txCounter, rxCounter     uint64

	audioSeq uint16

	lastHandshake time.Time
	lastKeepalive time.Time

	encoder codec.Encoder
	decoder codec.Decoder

	micRing      *ring.Buffer[int16]
	speakerRing  *ring.Buffer[int16]
	outgoingRing *ring.Buffer[byte]
	incomingRing *ring.Buffer[byte]

	fskModPCMRing     *ring.Buffer[int16]
	fskDemodBytesRing *ring.Buffer[byte]
	modulator         *modem.Modulator
	demodulator       *modem.Demodulator

	audioRSCodec *rs.Codec
}

// New constructs a Session bound to identity, with rings allocated and
// state Idle. Pass nil for logger to use log.Default(), which writes to
// os.Stderr.
func New(identity *Identity, opts Options, logger *log.Logger) (*Session, error) {
	if identity == nil {
		return nil, errs.New(errs.NotInitialised, "session: identity is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	modulator, err := modem.NewModulator(opts.ModemParams)
	if err != nil {
		return nil, err
	}
	demodulator, err := modem.NewDemodulator(opts.ModemParams)
	if err != nil {
		return nil, err
	}
	audioRS, err := rs.NewCodec(audioPayloadLen)
	if err != nil {
		return nil, err
	}

	return &Session{
		identity: identity,
		opts:     opts,
		logger:   logger,
		state:    StateIdle,

		micRing:      ring.New[int16](MicRingCapacity),
		speakerRing:  ring.New[int16](SpeakerRingCapacity),
		outgoingRing: ring.New[byte](OutgoingRingCapacity),
		incomingRing: ring.New[byte](IncomingRingCapacity),

		fskModPCMRing:     ring.New[int16](FSKModPCMCapacity),
		fskDemodBytesRing: ring.New[byte](FSKDemodBytesCapacity),
		modulator:         modulator,
		demodulator:       demodulator,

		audioRSCodec: audioRS,
	}, nil
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartSessionClient begins a session in the client role. expectedPeerStatic,
// if non-nil, pins the handshake to a known peer static key.
func (s *Session) StartSessionClient(expectedPeerStatic *[32]byte) error {
	return s.startSession(RoleClient, expectedPeerStatic)
}

// StartSessionServer begins a session in the server role.
func (s *Session) StartSessionServer(expectedPeerStatic *[32]byte) error {
	return s.startSession(RoleServer, expectedPeerStatic)
}

func (s *Session) startSession(role Role, expectedPeerStatic *[32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seed, err := crypto.CSPRNG(32)
	if err != nil {
		return errs.Wrap(errs.EntropyFailure, "session: failed to generate ephemeral key", err)
	}
	var ephPriv [32]byte
	copy(ephPriv[:], seed)
	crypto.ClampPrivate(&ephPriv)
	ephPub, err := crypto.DerivePublic(ephPriv)
	if err != nil {
		return errs.Wrap(errs.KeyExchangeFailed, "session: failed to derive ephemeral public key", err)
	}

	s.role = role
	s.ephPriv = ephPriv
	s.ephPub = ephPub
	s.expectedPeerStatic = expectedPeerStatic
	s.peerStatic = [32]byte{}
	s.peerEph = [32]byte{}
	s.peerSendsEncrypt = false
	s.peerAcceptsEncrypt = false
	s.remoteHangupRequested = false
	s.txKey = [32]byte{}
	s.rxKey = [32]byte{}
	s.txNonceBase = [12]byte{}
	s.rxNonceBase = [12]byte{}
	s.txCounter = 0
	s.rxCounter = 0
	s.audioSeq = 0
	s.encoder.Reset()
	s.decoder.Reset()
	s.lastHandshake = time.Time{}
	s.lastKeepalive = time.Time{}
	s.micRing.Clear()
	s.speakerRing.Clear()
	s.outgoingRing.Clear()
	s.incomingRing.Clear()
	s.state = StateReady

	s.logger.Info("session ready", "role", role, "fingerprint", s.identity.Fingerprint())
	return nil
}

// StopSession wipes all session state, including keys, while
// preserving the bound identity.
func (s *Session) StopSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateIdle
	s.ephPriv = [32]byte{}
	s.ephPub = [32]byte{}
	s.peerStatic = [32]byte{}
	s.peerEph = [32]byte{}
	s.txKey = [32]byte{}
	s.rxKey = [32]byte{}
	s.txNonceBase = [12]byte{}
	s.rxNonceBase = [12]byte{}
	s.txCounter = 0
	s.rxCounter = 0
	s.expectedPeerStatic = nil
	s.peerSendsEncrypt = false
	s.peerAcceptsEncrypt = false
	s.remoteHangupRequested = false
	s.audioSeq = 0
	s.encoder.Reset()
	s.decoder.Reset()
	s.lastHandshake = time.Time{}
	s.lastKeepalive = time.Time{}
	s.micRing.Clear()
	s.speakerRing.Clear()
	s.outgoingRing.Clear()
	s.incomingRing.Clear()
	s.fskModPCMRing.Clear()
	s.fskDemodBytesRing.Clear()

	s.logger.Info("session stopped")
}

// SetConfig replaces the session's options record.
func (s *Session) SetConfig(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

func (s *Session) outboundEncrypted() bool {
	return s.opts.Encrypt && s.peerAcceptsEncrypt
}

func (s *Session) inboundEncrypted() bool {
	return s.opts.Decrypt && s.peerSendsEncrypt
}

func (s *Session) aeadReady() bool {
	return s.state == StateKeysDerived || s.state == StateAcknowledged
}

// FeedMic appends microphone PCM samples to the mic ring.
func (s *Session) FeedMic(pcm []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return errs.New(errs.NoSession, "session: feed_mic with no active session")
	}
	s.micRing.Push(pcm...)
	return nil
}

// PullSpeaker copies up to len(buf) decoded samples into buf, returning
// the number written.
func (s *Session) PullSpeaker(buf []int16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	got := s.speakerRing.Pop(len(buf))
	copy(buf, got)
	return len(got)
}

// ConsumeRemoteHangup reads and clears the remote-hangup observation.
func (s *Session) ConsumeRemoteHangup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.remoteHangupRequested
	s.remoteHangupRequested = false
	return v
}

// SendHangup clears the outgoing ring and unconditionally enqueues an
// unencrypted Control(hangup) frame so it is visible even mid-handshake.
func (s *Session) SendHangup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return errs.New(errs.NoSession, "session: send_hangup with no active session")
	}
	s.outgoingRing.Clear()
	s.queueControlLocked(frame.ControlHangup)
	return nil
}

// composeNonce XORs the little-endian counter into the last 8 bytes of
// base, leaving the first 4 untouched (spec.md §4.7.1's nonce composition).
func composeNonce(base [12]byte, counter uint64) [12]byte {
	var n [12]byte
	copy(n[:4], base[:4])
	var ctr [8]byte
	binary.LittleEndian.PutUint64(ctr[:], counter)
	for i := 0; i < 8; i++ {
		n[4+i] = base[4+i] ^ ctr[i]
	}
	return n
}
