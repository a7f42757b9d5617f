package session

import (
	"time"

	"github.com/nadecore/nade/codec"
	"github.com/nadecore/nade/crypto"
	"github.com/nadecore/nade/errs"
	"github.com/nadecore/nade/frame"
)

// GenerateOutgoing advances the outbound pipeline by at most one step
// and copies up to len(buf) queued wire bytes into buf, returning the
// number written. Call repeatedly (e.g. once per transport tick); it
// never blocks.
func (s *Session) GenerateOutgoing(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return 0, errs.New(errs.NoSession, "session: generate_outgoing with no active session")
	case StateReady:
		s.maybeResendHandshakeLocked()
	case StateKeysDerived:
		// Resend the handshake until the peer's reply confirms it also
		// derived these keys, but start pushing traffic immediately:
		// without this the first Cipher frame would never go out, and
		// neither side could ever observe the other's keys working.
		s.maybeResendHandshakeLocked()
		s.drainMicLocked()
		s.maybeSendKeepaliveLocked()
	case StateAcknowledged:
		s.drainMicLocked()
		s.maybeSendKeepaliveLocked()
	}

	n := s.outgoingRing.Pop(len(buf))
	copy(buf, n)
	return len(n), nil
}

func (s *Session) maybeResendHandshakeLocked() {
	now := time.Now()
	if !s.lastHandshake.IsZero() && now.Sub(s.lastHandshake) < HandshakeResendInterval {
		return
	}
	s.lastHandshake = now
	body := s.buildHandshakePayload()
	s.outgoingRing.Push(frame.Handshake{Body: body}.Marshal(nil)...)
}

func (s *Session) maybeSendKeepaliveLocked() {
	now := time.Now()
	if !s.lastKeepalive.IsZero() && now.Sub(s.lastKeepalive) < KeepaliveInterval {
		return
	}
	s.lastKeepalive = now
	// A PayloadKeepalive travels through the same AEAD/Plaintext framing
	// as audio once keys exist, so the peer's first successful AEAD open
	// can come from a keepalive alone rather than waiting on real audio.
	// This pipeline never emits the outer Control(keepalive) frame; the
	// only Control frame it queues is the hangup from SendHangup.
	s.emitPayloadLocked(frame.KeepalivePayload{}.Marshal(nil))
}

// drainMicLocked encodes as many complete ADPCM frames as the mic ring
// holds and queues each as an Audio payload.
func (s *Session) drainMicLocked() {
	for s.micRing.Len() >= codec.FrameSamples {
		samples := s.micRing.Pop(codec.FrameSamples)
		block, err := s.encoder.EncodeBlock(samples)
		if err != nil {
			s.logger.Error("adpcm encode failed", "err", err)
			return
		}

		payload := frame.AudioPayload{
			CodecVer:  1,
			Seq:       s.audioSeq,
			Samples:   codec.FrameSamples,
			ADPCMData: block,
		}
		s.audioSeq++

		body := payload.Marshal(nil)
		if s.opts.FECEnabled {
			coded, err := s.audioRSCodec.Encode(body)
			if err != nil {
				s.logger.Error("rs encode failed", "err", err)
				return
			}
			body = coded
		}
		s.emitPayloadLocked(body)
	}
}

// queueControlLocked enqueues an unencrypted Control frame. Control
// frames are never AEAD sealed: they must be visible before the
// handshake completes (e.g. an early hangup) and carry no payload
// confidentiality requirement.
func (s *Session) queueControlLocked(subtype frame.ControlSubtype) {
	s.outgoingRing.Push(frame.Control{Subtype: subtype}.Marshal(nil)...)
}

// emitPayloadLocked frames body as Cipher (AEAD-sealed) when encryption
// is negotiated and ready, else as Plaintext, and queues the result.
func (s *Session) emitPayloadLocked(body []byte) {
	if s.outboundEncrypted() && s.aeadReady() {
		nonce := composeNonce(s.txNonceBase, s.txCounter)
		s.txCounter++
		ct, err := crypto.Seal(s.txKey, nonce, nil, body)
		if err != nil {
			s.logger.Error("aead seal failed", "err", err)
			return
		}
		s.outgoingRing.Push(frame.Cipher{Data: ct}.Marshal(nil)...)
		return
	}
	s.outgoingRing.Push(frame.Plaintext{Data: body}.Marshal(nil)...)
}

// HandleIncoming appends freshly-received wire bytes to the incoming
// ring and processes every complete frame currently available.
func (s *Session) HandleIncoming(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incomingRing.Push(data...)

	for {
		header := s.incomingRing.Peek(frame.HeaderLen)
		if len(header) < frame.HeaderLen {
			return nil
		}
		kind, length, ok := frame.Peek(header)
		if !ok {
			return nil
		}
		total := frame.HeaderLen + length
		if s.incomingRing.Len() < total {
			return nil
		}

		raw := s.incomingRing.Pop(total)
		f, _, err := frame.Parse(raw)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "kind", kind, "err", err)
			continue
		}

		if ferr := s.dispatchFrameLocked(f); ferr != nil {
			s.logger.Warn("frame handling error", "kind", f.Kind(), "err", ferr)
		}
	}
}

func (s *Session) dispatchFrameLocked(f frame.Frame) error {
	switch v := f.(type) {
	case frame.Handshake:
		return s.handleHandshakeLocked(v.Body)
	case frame.Cipher:
		return s.handleCipherLocked(v.Data)
	case frame.Plaintext:
		return s.handlePlaintextBodyLocked(v.Data)
	case frame.Control:
		return s.handleControlLocked(v.Subtype)
	default:
		return errs.New(errs.FrameMalformed, "session: unknown frame type")
	}
}

// handleCipherLocked opens an inbound Cipher frame. The rx counter
// advances exactly once per frame regardless of open success: a replayed
// or corrupted ciphertext must not let an attacker rewind the nonce
// sequence by resubmitting it.
func (s *Session) handleCipherLocked(ct []byte) error {
	if !s.aeadReady() {
		return errs.New(errs.KeyExchangeFailed, "session: cipher frame before keys derived")
	}
	nonce := composeNonce(s.rxNonceBase, s.rxCounter)
	s.rxCounter++

	pt, err := crypto.Open(s.rxKey, nonce, nil, ct)
	if err != nil {
		return err
	}
	if s.state == StateKeysDerived {
		s.state = StateAcknowledged
		s.logger.Info("session acknowledged")
	}
	return s.dispatchPlaintextLocked(pt)
}

func (s *Session) handlePlaintextBodyLocked(body []byte) error {
	if s.inboundEncrypted() {
		s.logger.Warn("plaintext frame received while peer is expected to encrypt")
	}
	return s.dispatchPlaintextLocked(body)
}

// dispatchPlaintextLocked parses a Cipher/Plaintext body into its
// payload subtype. When FEC is enabled, an RS-coded audio payload is
// exactly audioRSCodec.BlockLen() bytes long; every other payload
// (Keepalive, Hangup, or audio with FEC disabled) is parsed directly,
// so no in-band signalling of FEC-on-this-frame is needed.
func (s *Session) dispatchPlaintextLocked(body []byte) error {
	if s.opts.FECEnabled && len(body) == s.audioRSCodec.BlockLen() {
		corrected, nerrs, err := s.audioRSCodec.Decode(body)
		if err != nil {
			return err
		}
		if nerrs > 0 {
			s.logger.Debug("rs corrected errors", "count", nerrs)
		}
		body = corrected
	}

	payload, err := frame.ParsePayload(body)
	if err != nil {
		return err
	}
	switch p := payload.(type) {
	case frame.AudioPayload:
		return s.handleAudioPayloadLocked(p)
	case frame.KeepalivePayload:
		return nil
	case frame.HangupPayload:
		s.remoteHangupRequested = true
		return nil
	default:
		return errs.New(errs.FrameMalformed, "session: unknown payload type")
	}
}

// handleAudioPayloadLocked decodes one ADPCM frame and pushes its
// samples to the speaker ring. A payload claiming more samples than the
// codec's fixed frame size is rejected outright rather than silently
// truncated or zero-padded.
func (s *Session) handleAudioPayloadLocked(p frame.AudioPayload) error {
	if int(p.Samples) > codec.FrameSamples {
		return errs.New(errs.FrameMalformed, "session: audio payload claims too many samples")
	}
	pcm, err := s.decoder.DecodeBlock(p.ADPCMData)
	if err != nil {
		return err
	}
	s.speakerRing.Push(pcm[:p.Samples]...)
	return nil
}

func (s *Session) handleControlLocked(subtype frame.ControlSubtype) error {
	switch subtype {
	case frame.ControlHangup:
		s.remoteHangupRequested = true
	case frame.ControlKeepalive:
	default:
		return errs.New(errs.FrameMalformed, "session: unknown control subtype")
	}
	return nil
}
