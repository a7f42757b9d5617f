// Package rs implements systematic Reed-Solomon RS(255,223) over GF(2^8)
// (C4): encode produces data‖parity[32]; decode runs syndrome
// calculation, Berlekamp-Massey, Chien search, and Forney's algorithm to
// correct up to 16 symbol errors, exactly as spec.md §4.4 describes.
//
// The algorithm is Phil Karn's classic RS codec, the same one the
// teacher wraps via cgo in fx25_init.go/fx25_encode.go/fx25_extract.go
// (FCR=1, PRIM=1, primitive polynomial 0x11D, alpha=2) — re-expressed
// here as plain Go since the cgo interop in the teacher is an artifact of
// wrapping Karn's C sources, not something worth reproducing for a
// from-scratch implementation with no C headers to bind to.
package rs

import "github.com/nadecore/nade/errs"

const (
	// MaxDataLen is the largest systematic data payload RS(255,223) carries.
	MaxDataLen = 223
	// ParityLen is the fixed number of parity (check) bytes.
	ParityLen = 32
	// BlockLen is the unshortened RS(255,223) codeword length.
	BlockLen = MaxDataLen + ParityLen
	// MaxCorrectable is the number of symbol errors the code can repair.
	MaxCorrectable = ParityLen / 2

	fcr  = 1 // first consecutive root
	prim = 1 // primitive element exponent step between roots
)

// Codec is a shortened systematic RS(255,223) codec for a fixed data
// length (spec.md §4.4's "shortened codes simply omit leading virtual
// zeros"). Construct one per data length in use; Codec holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	dataLen    int
	genpolyLog []byte // generator polynomial coefficients, log form, length ParityLen+1
}

// NewCodec builds a shortened RS(255,223) codec for the given data
// length, 1 <= dataLen <= MaxDataLen.
func NewCodec(dataLen int) (*Codec, error) {
	if dataLen <= 0 || dataLen > MaxDataLen {
		return nil, errs.New(errs.BadArgument, "rs: data length out of range")
	}
	return &Codec{dataLen: dataLen, genpolyLog: buildGenPoly()}, nil
}

// DataLen returns the codec's configured data length.
func (c *Codec) DataLen() int { return c.dataLen }

// ParityLen returns the fixed parity length (32 for RS(255,223)).
func (c *Codec) ParityLen() int { return ParityLen }

// BlockLen returns DataLen()+ParityLen().
func (c *Codec) BlockLen() int { return c.dataLen + ParityLen }

// buildGenPoly constructs g(x) = prod_{i=1..ParityLen}(x - alpha^i) in
// log (index-of) coefficient form, the representation encode() consumes
// directly — mirroring init_rs_char's genpoly construction in the
// reference, generalised from a per-rate C struct to a package function
// since every NADE codec shares the same nroots=32, fcr=1, prim=1.
func buildGenPoly() []byte {
	genpoly := make([]byte, ParityLen+1)
	genpoly[0] = 1

	root := fcr * prim
	for i := 0; i < ParityLen; i++ {
		genpoly[i+1] = 1
		for j := i; j > 0; j-- {
			if genpoly[j] != 0 {
				genpoly[j] = genpoly[j-1] ^ gfExp[modnn(int(gfLog[genpoly[j]])+root)]
			} else {
				genpoly[j] = genpoly[j-1]
			}
		}
		genpoly[0] = gfExp[modnn(int(gfLog[genpoly[0]])+root)]
		root += prim
	}

	out := make([]byte, ParityLen+1)
	for i := range genpoly {
		out[i] = gfLog[genpoly[i]]
	}
	return out
}

// Encode produces data‖parity[ParityLen], systematic encoding via shift-
// register polynomial division of data·x^ParityLen by g(x).
func (c *Codec) Encode(data []byte) ([]byte, error) {
	if len(data) != c.dataLen {
		return nil, errs.New(errs.BadArgument, "rs: Encode data length mismatch")
	}

	parity := make([]byte, ParityLen)
	for i := 0; i < c.dataLen; i++ {
		feedback := int(gfLog[data[i]^parity[0]])
		if feedback != nn {
			for j := 1; j < ParityLen; j++ {
				parity[j] ^= gfExp[modnn(feedback+int(c.genpolyLog[ParityLen-j]))]
			}
		}
		copy(parity, parity[1:])
		if feedback != nn {
			parity[ParityLen-1] = gfExp[modnn(feedback+int(c.genpolyLog[0]))]
		} else {
			parity[ParityLen-1] = 0
		}
	}

	out := make([]byte, 0, c.dataLen+ParityLen)
	out = append(out, data...)
	out = append(out, parity...)
	return out, nil
}

// Decode corrects up to MaxCorrectable symbol errors in a codeword and
// returns the recovered data portion plus the number of errors found.
// Any inconsistency — a locator degree above MaxCorrectable, a Chien
// search that doesn't find exactly that many roots, a zero Forney
// denominator, or syndromes that are still nonzero after correction —
// returns errs.Uncorrectable rather than guessed-at output.
func (c *Codec) Decode(codeword []byte) ([]byte, int, error) {
	n := c.dataLen + ParityLen
	if len(codeword) != n {
		return nil, 0, errs.New(errs.BadArgument, "rs: Decode codeword length mismatch")
	}
	pad := nn - n

	work := make([]byte, len(codeword))
	copy(work, codeword)

	syn := syndromes(work, pad)
	clean := true
	for _, s := range syn {
		if s != 0 {
			clean = false
			break
		}
	}
	if clean {
		return work[:c.dataLen], 0, nil
	}

	synLog := make([]int, ParityLen)
	for i, s := range syn {
		synLog[i] = int(gfLog[s])
	}

	lambda, degLambda := berlekampMassey(synLog)
	if degLambda > MaxCorrectable {
		return nil, 0, errs.New(errs.Uncorrectable, "rs: error locator degree exceeds correction capability")
	}

	positions, ok := chienSearch(lambda, degLambda, pad, n)
	if !ok {
		return nil, 0, errs.New(errs.Uncorrectable, "rs: chien search root count mismatch")
	}

	if err := forneyCorrect(work, synLog, lambda, degLambda, pad, positions); err != nil {
		return nil, 0, err
	}

	// Re-verify: corrected codeword must now have all-zero syndromes.
	syn2 := syndromes(work, pad)
	for _, s := range syn2 {
		if s != 0 {
			return nil, 0, errs.New(errs.Uncorrectable, "rs: residual syndrome nonzero after correction")
		}
	}

	return work[:c.dataLen], len(positions), nil
}

// syndromes evaluates the received codeword at the ParityLen roots of
// g(x), accounting for the shortening offset: position j in a shortened
// codeword is evaluated at alpha^(pad+j), per spec.md §4.4 step 1.
func syndromes(codeword []byte, pad int) []byte {
	syn := make([]byte, ParityLen)
	for i := 0; i < ParityLen; i++ {
		var s byte
		root := (fcr + i) * prim
		for j := 0; j < len(codeword); j++ {
			if codeword[j] == 0 {
				continue
			}
			exp := modnn((pad + j) * root)
			s ^= gfExp[modnn(int(gfLog[codeword[j]])+exp)]
		}
		syn[i] = s
	}
	return syn
}

// berlekampMassey computes the error locator polynomial lambda(x) in
// coefficient form from the syndromes (log form), returning it and its
// degree.
func berlekampMassey(synLog []int) ([]byte, int) {
	lambda := make([]byte, ParityLen+1)
	b := make([]byte, ParityLen+1)
	t := make([]byte, ParityLen+1)
	lambda[0] = 1
	b[0] = 1

	el := 0
	for r := 1; r <= ParityLen; r++ {
		var discr int
		for i := 0; i < r; i++ {
			if lambda[i] != 0 && synLog[r-i-1] != nn {
				discr ^= int(gfExp[modnn(int(gfLog[lambda[i]])+synLog[r-i-1])])
			}
		}
		if discr == 0 {
			copy(b[1:], b)
			b[0] = 0
			continue
		}
		discrLog := int(gfLog[byte(discr)])

		copy(t, lambda)
		for i := 0; i < ParityLen; i++ {
			if b[i] != 0 {
				t[i+1] = lambda[i+1] ^ gfExp[modnn(discrLog+int(gfLog[b[i]]))]
			} else {
				t[i+1] = lambda[i+1]
			}
		}

		if 2*el <= r-1 {
			el = r - el
			for i := 0; i <= ParityLen; i++ {
				if lambda[i] == 0 {
					b[i] = 0
				} else {
					b[i] = gfExp[modnn(int(gfLog[lambda[i]])-discrLog+nn)]
				}
			}
		} else {
			copy(b[1:], b)
			b[0] = 0
		}
		copy(lambda, t)
	}

	degLambda := 0
	for i := 0; i < ParityLen+1; i++ {
		if lambda[i] != 0 {
			degLambda = i
		}
	}
	return lambda, degLambda
}

// chienSearch finds the error positions by brute-force evaluation of
// lambda(x) over all n codeword positions. Position j's locator is
// alpha^(pad+j) (spec.md §4.4's shortening convention); a root of
// lambda at X = alpha^-(pad+j) marks j as an error position. ok is
// false unless exactly degLambda roots were found, signalling an
// uncorrectable block.
func chienSearch(lambda []byte, degLambda, pad, n int) (positions []int, ok bool) {
	for j := 0; j < n; j++ {
		k := modnn(pad + j)
		zExp := modnn(nn - k) // exponent of X = alpha^-(pad+j)

		var q byte = 1
		for i := 1; i <= degLambda; i++ {
			if lambda[i] != 0 {
				q ^= gfExp[modnn(int(gfLog[lambda[i]])+i*zExp)]
			}
		}
		if q == 0 {
			positions = append(positions, j)
			if len(positions) == degLambda {
				break
			}
		}
	}
	return positions, len(positions) == degLambda
}

// evalAt evaluates a GF(2^8) polynomial (coefficient form, low-order
// first) at alpha^k.
func evalAt(poly []byte, deg, k int) byte {
	var acc byte
	for i := 0; i <= deg; i++ {
		if poly[i] != 0 {
			acc ^= gfExp[modnn(int(gfLog[poly[i]])+i*k)]
		}
	}
	return acc
}

// evalOddDerivative evaluates the formal derivative of lambda(x) at
// alpha^k. In characteristic 2 only the odd-power coefficients survive,
// each contributing x^(i-1) with its original coefficient.
func evalOddDerivative(lambda []byte, degLambda, k int) byte {
	var acc byte
	for i := 1; i <= degLambda; i += 2 {
		if lambda[i] != 0 {
			acc ^= gfExp[modnn(int(gfLog[lambda[i]])+(i-1)*k)]
		}
	}
	return acc
}

// forneyCorrect computes the error-evaluator polynomial omega(x) = S(x)
// lambda(x) mod x^ParityLen, then applies Forney's formula at each
// located position j: with k = pad+j, X = alpha^-k, the error value is
// e = X * omega(alpha^k) / lambda'(alpha^k).
func forneyCorrect(work []byte, synLog []int, lambda []byte, degLambda, pad int, positions []int) error {
	omega := make([]byte, ParityLen)
	degOmega := -1
	for i := 0; i < ParityLen; i++ {
		var tmp int
		jMax := i
		if degLambda < jMax {
			jMax = degLambda
		}
		for j := 0; j <= jMax; j++ {
			if synLog[i-j] != nn && lambda[j] != 0 {
				tmp ^= int(gfExp[modnn(synLog[i-j]+int(gfLog[lambda[j]]))])
			}
		}
		if tmp != 0 {
			degOmega = i
		}
		omega[i] = byte(tmp)
	}

	for _, j := range positions {
		k := modnn(pad + j)
		zExp := modnn(nn - k)

		sigmaPrimeY := evalOddDerivative(lambda, degLambda, k)
		if sigmaPrimeY == 0 {
			return errs.New(errs.Uncorrectable, "rs: forney denominator is zero")
		}

		omegaY := evalAt(omega, degOmega, k)
		if omegaY == 0 {
			continue
		}

		errVal := gfExp[modnn(zExp+int(gfLog[omegaY])+nn-int(gfLog[sigmaPrimeY]))]
		work[j] ^= errVal
	}
	return nil
}
