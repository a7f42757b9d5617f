// Package modem implements the 4-FSK modem (C5): a continuous-phase
// modulator driven by a single running phase accumulator, and a
// Goertzel-based demodulator that slices fixed-length symbol windows
// into tone-bin power and argmaxes across the four mark frequencies.
//
// This mirrors the teacher's own local-oscillator style in
// demod_afsk.go (a running phase accumulator advanced every sample,
// looked up through a cosine table) and gen_tone.go (straight
// sin/cos synthesis at a fixed amplitude), adapted from AFSK's two
// tones and PLL-recovered bit clock to NADE's four tones and
// externally-aligned symbol clock — the Non-goals in spec.md §4.5
// explicitly drop symbol-timing recovery, so there is no PLL here.
package modem

import (
	"math"

	"github.com/nadecore/nade/errs"
)

// SamplesPerSymbol is the fixed symbol window length at the default
// sample/symbol rates (8000/100).
const SamplesPerSymbol = 80

// Amplitude is the default peak sample value for modulated tones.
const Amplitude = 16000

// DefaultPowerThreshold is the Goertzel power below which a symbol
// window is treated as silence and discarded.
const DefaultPowerThreshold = 1e6

// Params configures one modem direction. The zero value is invalid;
// use DefaultParams.
type Params struct {
	SampleRate     int
	SymbolRate     int
	Tones          [4]float64
	Amplitude      int16
	PowerThreshold float64
}

// DefaultParams returns spec.md §4.5's fixed defaults: 8 kHz sampling,
// 100 Bd, tones at 1200/1600/2000/2400 Hz, amplitude 16000.
func DefaultParams() Params {
	return Params{
		SampleRate:     8000,
		SymbolRate:     100,
		Tones:          [4]float64{1200, 1600, 2000, 2400},
		Amplitude:      Amplitude,
		PowerThreshold: DefaultPowerThreshold,
	}
}

func (p Params) samplesPerSymbol() int {
	return p.SampleRate / p.SymbolRate
}

func (p Params) validate() error {
	if p.SampleRate <= 0 || p.SymbolRate <= 0 {
		return errs.New(errs.BadArgument, "modem: sample rate and symbol rate must be positive")
	}
	if p.SampleRate%p.SymbolRate != 0 {
		return errs.New(errs.BadArgument, "modem: sample rate must be an integer multiple of symbol rate")
	}
	return nil
}

// Modulator turns bytes into a 4-FSK PCM waveform, carrying phase
// continuously across symbol (and byte) boundaries.
type Modulator struct {
	params      Params
	phase       float64 // radians, kept in [0, 2*pi)
	symbolsSent uint64
}

// NewModulator constructs a Modulator for the given parameters.
func NewModulator(params Params) (*Modulator, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Modulator{params: params}, nil
}

// SymbolsSent returns the running count of symbols emitted.
func (m *Modulator) SymbolsSent() uint64 { return m.symbolsSent }

// ModulateByte appends one byte's worth of PCM (4 symbols, low bits
// first, each samplesPerSymbol samples long) to out and returns it.
func (m *Modulator) ModulateByte(b byte, out []int16) []int16 {
	for i := 0; i < 4; i++ {
		sym := (b >> (2 * i)) & 0x3
		out = m.modulateSymbol(sym, out)
	}
	return out
}

// Modulate appends PCM for every byte in data, in order.
func (m *Modulator) Modulate(data []byte, out []int16) []int16 {
	for _, b := range data {
		out = m.ModulateByte(b, out)
	}
	return out
}

func (m *Modulator) modulateSymbol(sym byte, out []int16) []int16 {
	freq := m.params.Tones[sym]
	delta := 2 * math.Pi * freq / float64(m.params.SampleRate)
	n := m.params.samplesPerSymbol()

	for i := 0; i < n; i++ {
		sample := float64(m.params.Amplitude) * math.Sin(m.phase)
		out = append(out, int16(sample))
		m.phase += delta
		if m.phase >= 2*math.Pi {
			m.phase -= 2 * math.Pi
		}
	}
	m.symbolsSent++
	return out
}

// Demodulator slices incoming PCM into fixed-length symbol windows and
// recovers bytes via per-window Goertzel power comparison across the
// four tone bins. No timing recovery: the caller is responsible for
// sample alignment (spec.md §4.5's Non-goals).
type Demodulator struct {
	params Params
	coeffs [4]float64

	window      []int16
	nibbles     []byte // 2-bit symbols accumulated toward the next output byte
	symbolsRecv uint64
	symbolsDrop uint64
}

// NewDemodulator constructs a Demodulator for the given parameters.
func NewDemodulator(params Params) (*Demodulator, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	d := &Demodulator{params: params}
	for i, f := range params.Tones {
		d.coeffs[i] = 2 * math.Cos(2*math.Pi*f/float64(params.SampleRate))
	}
	d.window = make([]int16, 0, params.samplesPerSymbol())
	return d, nil
}

// SymbolsReceived returns the running count of symbols sliced above threshold.
func (d *Demodulator) SymbolsReceived() uint64 { return d.symbolsRecv }

// SymbolsDropped returns the running count of below-threshold (silence) windows discarded.
func (d *Demodulator) SymbolsDropped() uint64 { return d.symbolsDrop }

// FeedSamples accumulates PCM samples, slicing complete symbol windows
// as they fill and appending any fully-assembled bytes to out.
func (d *Demodulator) FeedSamples(samples []int16, out []byte) []byte {
	n := d.params.samplesPerSymbol()
	for _, s := range samples {
		d.window = append(d.window, s)
		if len(d.window) < n {
			continue
		}

		sym, ok := d.sliceSymbol(d.window)
		d.window = d.window[:0]
		if !ok {
			d.symbolsDrop++
			continue
		}
		d.symbolsRecv++

		d.nibbles = append(d.nibbles, sym)
		if len(d.nibbles) == 4 {
			var b byte
			for i, nb := range d.nibbles {
				b |= nb << (2 * i)
			}
			out = append(out, b)
			d.nibbles = d.nibbles[:0]
		}
	}
	return out
}

// sliceSymbol runs the Goertzel algorithm for all four tone bins over
// one symbol window and returns the strongest bin, or ok=false if the
// peak power doesn't clear PowerThreshold.
func (d *Demodulator) sliceSymbol(window []int16) (sym byte, ok bool) {
	var bestPower float64
	var bestBin byte
	for k := 0; k < 4; k++ {
		p := goertzelPower(window, d.coeffs[k])
		if p > bestPower {
			bestPower = p
			bestBin = byte(k)
		}
	}
	if bestPower < d.params.PowerThreshold {
		return 0, false
	}
	return bestBin, true
}

// goertzelPower computes the Goertzel power of window at the tone
// whose recurrence coefficient is coeff.
func goertzelPower(window []int16, coeff float64) float64 {
	var s0, s1, s2 float64
	for _, sample := range window {
		s0 = coeff*s1 - s2 + float64(sample)
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}
