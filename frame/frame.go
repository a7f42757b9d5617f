// Package frame implements NADE's wire framing (C6): a length-prefixed
// tagged union (Handshake/Cipher/Plaintext/Control) plus the plaintext
// payload subtypes (Audio/Keepalive/Hangup) carried inside Cipher and
// Plaintext bodies.
//
// Ground rule taken from spec.md §9's redesign guidance: the original's
// tag-on-byte switch over a shared frame buffer is replaced here by a small
// closed set of Go types behind the Frame interface, the same shape the
// teacher uses for its own on-air structures (ax25 frame, aprs packet)
// — one concrete type per kind, a kind byte to dispatch on, Marshal/
// Parse pairs instead of bit-twiddling a shared buffer.
package frame

import (
	"encoding/binary"

	"github.com/nadecore/nade/errs"
)

// Kind identifies the outer frame type.
type Kind byte

const (
	KindHandshake Kind = 0x01
	KindCipher    Kind = 0x02
	KindPlaintext Kind = 0x03
	KindControl   Kind = 0x04
)

// PayloadKind identifies a plaintext payload subtype carried inside a
// Cipher or Plaintext frame body.
type PayloadKind byte

const (
	PayloadAudio     PayloadKind = 0xA1
	PayloadKeepalive PayloadKind = 0xCC
	PayloadHangup    PayloadKind = 0xDD
)

// ControlSubtype identifies a Control frame's single-byte body.
type ControlSubtype byte

const (
	ControlKeepalive ControlSubtype = 0xCC
	ControlHangup    ControlSubtype = 0xDD
)

// HeaderLen is the fixed kind+length prefix preceding every frame body.
const HeaderLen = 3

// MaxBodyLen is the largest frame body NADE will parse; larger frames
// are dropped from the incoming ring without touching session state
// (spec.md §4.6).
const MaxBodyLen = 2048

// HandshakeBodyLen is the fixed 84-byte handshake payload (spec.md §4.7.1).
const HandshakeBodyLen = 84

// AudioHeaderLen is the fixed header preceding ADPCM bytes in an Audio payload.
const AudioHeaderLen = 7 // codec_ver:u8 + seq:u16 + samples:u16 + adpcm_len:u16

// Frame is any of the four outer wire frame kinds.
type Frame interface {
	Kind() Kind
	// Marshal appends kind‖length‖body to dst and returns the result.
	Marshal(dst []byte) []byte
}

// Handshake carries the 84-byte handshake payload verbatim; spec.md
// §4.7.1 defines and validates its internal fields, this package only
// carries the bytes.
type Handshake struct {
	Body [HandshakeBodyLen]byte
}

func (h Handshake) Kind() Kind { return KindHandshake }

func (h Handshake) Marshal(dst []byte) []byte {
	return marshalHeader(dst, KindHandshake, h.Body[:])
}

// Cipher carries AEAD ciphertext‖tag; the plaintext it decrypts to
// begins with a PayloadKind byte.
type Cipher struct {
	Data []byte
}

func (c Cipher) Kind() Kind { return KindCipher }

func (c Cipher) Marshal(dst []byte) []byte {
	return marshalHeader(dst, KindCipher, c.Data)
}

// Plaintext carries an unencrypted payload, used when either side has
// disabled encryption. Body begins with a PayloadKind byte.
type Plaintext struct {
	Data []byte
}

func (p Plaintext) Kind() Kind { return KindPlaintext }

func (p Plaintext) Marshal(dst []byte) []byte {
	return marshalHeader(dst, KindPlaintext, p.Data)
}

// Control carries a single-byte subtype (keepalive or hangup).
type Control struct {
	Subtype ControlSubtype
}

func (c Control) Kind() Kind { return KindControl }

func (c Control) Marshal(dst []byte) []byte {
	return marshalHeader(dst, KindControl, []byte{byte(c.Subtype)})
}

func marshalHeader(dst []byte, kind Kind, body []byte) []byte {
	dst = append(dst, byte(kind))
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(body)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, body...)
	return dst
}

// Peek reads the 3-byte header at the front of buf without consuming
// it, returning the declared body length and whether a complete header
// was present.
func Peek(buf []byte) (kind Kind, length int, ok bool) {
	if len(buf) < HeaderLen {
		return 0, 0, false
	}
	kind = Kind(buf[0])
	length = int(binary.LittleEndian.Uint16(buf[1:3]))
	return kind, length, true
}

// Parse consumes one complete frame from the front of buf, returning the
// parsed Frame, the number of bytes consumed (header+body), and err.
// If buf doesn't yet hold a complete frame it returns a nil Frame, 0 and
// a nil err. A body exceeding MaxBodyLen (or any other malformed frame)
// is reported via err with consumed still set to the frame's full
// length, so the caller can drop exactly that frame and resume there.
func Parse(buf []byte) (f Frame, consumed int, err error) {
	kind, length, ok := Peek(buf)
	if !ok {
		return nil, 0, nil
	}
	total := HeaderLen + length
	if len(buf) < total {
		return nil, 0, nil
	}
	if length > MaxBodyLen {
		return nil, total, errs.New(errs.FrameMalformed, "frame: body exceeds MaxBodyLen")
	}

	body := buf[HeaderLen:total]
	switch kind {
	case KindHandshake:
		if length != HandshakeBodyLen {
			return nil, total, errs.New(errs.FrameMalformed, "frame: handshake body must be 84 bytes")
		}
		var h Handshake
		copy(h.Body[:], body)
		return h, total, nil
	case KindCipher:
		data := make([]byte, length)
		copy(data, body)
		return Cipher{Data: data}, total, nil
	case KindPlaintext:
		data := make([]byte, length)
		copy(data, body)
		return Plaintext{Data: data}, total, nil
	case KindControl:
		if length != 1 {
			return nil, total, errs.New(errs.FrameMalformed, "frame: control body must be 1 byte")
		}
		return Control{Subtype: ControlSubtype(body[0])}, total, nil
	default:
		return nil, total, errs.New(errs.FrameMalformed, "frame: unknown frame kind")
	}
}

// AudioPayload is the plaintext payload carried with PayloadAudio: an
// ADPCM-encoded frame plus its sequencing header.
type AudioPayload struct {
	CodecVer  uint8
	Seq       uint16
	Samples   uint16
	ADPCMData []byte
}

// Payload is any of the plaintext payload subtypes appearing inside a
// Cipher or Plaintext frame body.
type Payload interface {
	PayloadKind() PayloadKind
	Marshal(dst []byte) []byte
}

func (a AudioPayload) PayloadKind() PayloadKind { return PayloadAudio }

func (a AudioPayload) Marshal(dst []byte) []byte {
	dst = append(dst, byte(PayloadAudio))
	dst = append(dst, a.CodecVer)
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], a.Seq)
	dst = append(dst, u16[:]...)
	binary.LittleEndian.PutUint16(u16[:], a.Samples)
	dst = append(dst, u16[:]...)
	binary.LittleEndian.PutUint16(u16[:], uint16(len(a.ADPCMData)))
	dst = append(dst, u16[:]...)
	dst = append(dst, a.ADPCMData...)
	return dst
}

// KeepalivePayload mirrors Control's keepalive subtype for use inside
// Cipher/Plaintext bodies.
type KeepalivePayload struct{}

func (KeepalivePayload) PayloadKind() PayloadKind { return PayloadKeepalive }
func (KeepalivePayload) Marshal(dst []byte) []byte {
	return append(dst, byte(PayloadKeepalive))
}

// HangupPayload mirrors Control's hangup subtype for use inside
// Cipher/Plaintext bodies.
type HangupPayload struct{}

func (HangupPayload) PayloadKind() PayloadKind { return PayloadHangup }
func (HangupPayload) Marshal(dst []byte) []byte {
	return append(dst, byte(PayloadHangup))
}

// ParsePayload dispatches a Cipher/Plaintext body by its leading
// PayloadKind byte.
func ParsePayload(body []byte) (Payload, error) {
	if len(body) < 1 {
		return nil, errs.New(errs.FrameMalformed, "frame: empty payload body")
	}
	switch PayloadKind(body[0]) {
	case PayloadAudio:
		if len(body) < 1+AudioHeaderLen {
			return nil, errs.New(errs.FrameMalformed, "frame: audio payload too short")
		}
		codecVer := body[1]
		seq := binary.LittleEndian.Uint16(body[2:4])
		samples := binary.LittleEndian.Uint16(body[4:6])
		adpcmLen := binary.LittleEndian.Uint16(body[6:8])
		rest := body[8:]
		if int(adpcmLen) != len(rest) {
			return nil, errs.New(errs.FrameMalformed, "frame: audio adpcm_len mismatch")
		}
		adpcm := make([]byte, len(rest))
		copy(adpcm, rest)
		return AudioPayload{CodecVer: codecVer, Seq: seq, Samples: samples, ADPCMData: adpcm}, nil
	case PayloadKeepalive:
		return KeepalivePayload{}, nil
	case PayloadHangup:
		return HangupPayload{}, nil
	default:
		return nil, errs.New(errs.FrameMalformed, "frame: unknown payload kind")
	}
}
