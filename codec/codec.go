// Package codec implements the IMA ADPCM waveform codec (C3): 4 bits per
// sample, 320-sample frames at 8 kHz, encoded as a 4-byte header
// (predictor, index, reserved) followed by packed nibbles.
//
// This is a from-scratch implementation of the canonical public-domain
// IMA ADPCM algorithm; the teacher's own DSP layer (dsp.go) does
// comparable fixed-point sample-processing work for AFSK demodulation
// (band-pass/low-pass filtering of 16-bit PCM), and this package follows
// its stateful-struct-per-direction style: an Encoder/Decoder pair each
// hold exactly the predictor/index/primed state spec.md §3 lists under
// "Per-direction ADPCM state".
package codec

import "github.com/nadecore/nade/errs"

// FrameSamples is the number of PCM samples per audio frame (40ms @ 8kHz).
const FrameSamples = 320

// BlockHeaderLen is the 4-byte encoded block header (predictor, index,
// reserved) preceding the packed nibbles.
const BlockHeaderLen = 4

// EncodedBlockLen is the size in bytes of one encoded 320-sample frame:
// 4 header bytes + 160 bytes of packed nibbles (320 samples @ 4 bits).
const EncodedBlockLen = BlockHeaderLen + FrameSamples/2

var stepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31,
	34, 37, 41, 45, 50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658,
	724, 796, 876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

var indexTable = [16]int8{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i > 88 {
		return 88
	}
	return i
}

func clampPredictor(p int32) int16 {
	if p > 32767 {
		return 32767
	}
	if p < -32768 {
		return -32768
	}
	return int16(p)
}

// State is the mutable per-direction ADPCM state shared by Encoder and
// Decoder: predictor in [-32768,32767], index in [0,88], and whether the
// first sample has been seen yet.
type State struct {
	Predictor int16
	Index     uint8
	Primed    bool
}

// Encoder holds one direction's encode state.
type Encoder struct {
	state State
}

// NewEncoder returns a fresh encoder, predictor/index reset to zero.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Reset clears the encoder state (used on session_reset).
func (e *Encoder) Reset() {
	e.state = State{}
}

// State returns a copy of the current encode state.
func (e *Encoder) State() State { return e.state }

// EncodeBlock encodes exactly FrameSamples samples into EncodedBlockLen
// bytes. On the first call after construction or Reset, the predictor is
// seeded from the first sample and index starts at 0, per spec.
func (e *Encoder) EncodeBlock(samples []int16) ([]byte, error) {
	if len(samples) != FrameSamples {
		return nil, errs.New(errs.BadArgument, "codec: EncodeBlock requires exactly FrameSamples samples")
	}

	if !e.state.Primed {
		e.state.Predictor = samples[0]
		e.state.Index = 0
		e.state.Primed = true
	}

	out := make([]byte, EncodedBlockLen)
	out[0] = byte(uint16(e.state.Predictor))
	out[1] = byte(uint16(e.state.Predictor) >> 8)
	out[2] = e.state.Index
	out[3] = 0

	predictor := int32(e.state.Predictor)
	index := int(e.state.Index)

	for i, sample := range samples {
		nibble := quantize(int32(sample), &predictor, &index)
		byteIdx := BlockHeaderLen + i/2
		if i%2 == 0 {
			out[byteIdx] = nibble
		} else {
			out[byteIdx] |= nibble << 4
		}
	}

	e.state.Predictor = clampPredictor(predictor)
	e.state.Index = uint8(clampIndex(index))

	return out, nil
}

// quantize computes the 4-bit code for one sample and advances predictor/index
// in place, following the standard IMA ADPCM sign-magnitude quantiser.
func quantize(sample int32, predictor *int32, index *int) byte {
	step := stepTable[*index]

	diff := sample - *predictor
	var code int32
	if diff < 0 {
		code = 8
		diff = -diff
	}

	tempStep := step
	if diff >= tempStep {
		code |= 4
		diff -= tempStep
	}
	tempStep >>= 1
	if diff >= tempStep {
		code |= 2
		diff -= tempStep
	}
	tempStep >>= 1
	if diff >= tempStep {
		code |= 1
	}

	diffq := step >> 3
	if code&4 != 0 {
		diffq += step
	}
	if code&2 != 0 {
		diffq += step >> 1
	}
	if code&1 != 0 {
		diffq += step >> 2
	}

	if code&8 != 0 {
		*predictor -= diffq
	} else {
		*predictor += diffq
	}
	if *predictor > 32767 {
		*predictor = 32767
	} else if *predictor < -32768 {
		*predictor = -32768
	}

	*index = clampIndex(*index + int(indexTable[code]))

	return byte(code)
}

// Decoder holds one direction's decode state.
type Decoder struct {
	state State
}

// NewDecoder returns a fresh decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset clears the decoder state.
func (d *Decoder) Reset() {
	d.state = State{}
}

// State returns a copy of the current decode state.
func (d *Decoder) State() State { return d.state }

// DecodeBlock decodes one EncodedBlockLen-byte block back into
// FrameSamples int16 PCM samples, recomputing the predictor identically
// to the encoder.
func (d *Decoder) DecodeBlock(block []byte) ([]int16, error) {
	if len(block) != EncodedBlockLen {
		return nil, errs.New(errs.BadArgument, "codec: DecodeBlock requires exactly EncodedBlockLen bytes")
	}

	predictor := int32(int16(uint16(block[0]) | uint16(block[1])<<8))
	index := clampIndex(int(block[2]))

	out := make([]int16, FrameSamples)
	for i := 0; i < FrameSamples; i++ {
		byteIdx := BlockHeaderLen + i/2
		var nibble byte
		if i%2 == 0 {
			nibble = block[byteIdx] & 0x0F
		} else {
			nibble = (block[byteIdx] >> 4) & 0x0F
		}
		out[i] = dequantize(nibble, &predictor, &index)
	}

	d.state.Predictor = clampPredictor(predictor)
	d.state.Index = uint8(index)
	d.state.Primed = true

	return out, nil
}

func dequantize(code byte, predictor *int32, index *int) int16 {
	step := stepTable[*index]

	diffq := step >> 3
	if code&4 != 0 {
		diffq += step
	}
	if code&2 != 0 {
		diffq += step >> 1
	}
	if code&1 != 0 {
		diffq += step >> 2
	}

	if code&8 != 0 {
		*predictor -= diffq
	} else {
		*predictor += diffq
	}
	if *predictor > 32767 {
		*predictor = 32767
	} else if *predictor < -32768 {
		*predictor = -32768
	}

	*index = clampIndex(*index + int(indexTable[code]))

	return int16(*predictor)
}
