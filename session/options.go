package session

import "github.com/nadecore/nade/modem"

// Options is the small typed options record set_config accepts
// (spec.md §1 excludes configuration ingestion from the core; this is
// the narrow surface the core itself consumes).
type Options struct {
	// Encrypt, if false, sends outbound frames as Plaintext.
	Encrypt bool
	// Decrypt, if false, accepts the peer's Plaintext frames.
	Decrypt bool
	// FSKEnabled gates the optional FSK modem entry points.
	FSKEnabled bool
	// FECEnabled interposes Reed-Solomon parity around the audio
	// payload between ADPCM and AEAD (spec.md §9's RS-in-pipeline open
	// question, resolved here per the outbound data flow in §2: "C7
	// attaches audio header + optional C4 parity"). Must be set the
	// same way on both peers.
	FECEnabled bool
	// ModemParams configures the FSK modem when FSKEnabled is set.
	ModemParams modem.Params
}

// DefaultOptions returns encryption on, decryption on, FSK and FEC off.
func DefaultOptions() Options {
	return Options{
		Encrypt:     true,
		Decrypt:     true,
		FSKEnabled:  false,
		FECEnabled:  false,
		ModemParams: modem.DefaultParams(),
	}
}

// capabilities packs Encrypt/Decrypt into the handshake payload's
// capability byte: bit0 = sends_encrypt, bit1 = accepts_encrypt.
func (o Options) capabilities() byte {
	var c byte
	if o.Encrypt {
		c |= 0x01
	}
	if o.Decrypt {
		c |= 0x02
	}
	return c
}
