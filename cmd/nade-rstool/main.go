// Command nade-rstool exercises the Reed-Solomon codec (C4) from the
// command line: encode a data file to a codeword, or decode a codeword
// and report how many symbol errors were corrected.
//
// Grounded on the teacher's cmd/fxrec and cmd/fxsend, which exercise the
// cgo-wrapped FX.25 RS codec the same way: read bytes from stdin/a file,
// run the codec, write the result, report what happened via
// charmbracelet/log rather than dw_printf.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/nadecore/nade/rs"
)

func main() {
	var (
		decode  = pflag.BoolP("decode", "d", false, "decode a codeword instead of encoding data")
		dataLen = pflag.IntP("data-len", "n", 0, "data length in bytes for --decode; defaults to input size minus 32 parity bytes (encode always uses the input size)")
		inPath  = pflag.StringP("in", "i", "-", "input file, - for stdin")
		outPath = pflag.StringP("out", "o", "-", "output file, - for stdout")
	)
	pflag.Parse()

	logger := log.Default()

	in, err := readAll(*inPath)
	if err != nil {
		logger.Fatal("reading input", "err", err)
	}

	var out []byte
	if *decode {
		n := *dataLen
		if n <= 0 {
			n = len(in) - rs.ParityLen
		}
		codec, err := rs.NewCodec(n)
		if err != nil {
			logger.Fatal("building codec", "err", err)
		}
		data, nerrs, err := codec.Decode(in)
		if err != nil {
			logger.Fatal("decode failed", "err", err)
		}
		logger.Info("decoded", "errors_corrected", nerrs)
		out = data
	} else {
		codec, err := rs.NewCodec(len(in))
		if err != nil {
			logger.Fatal("building codec", "err", err)
		}
		codeword, err := codec.Encode(in)
		if err != nil {
			logger.Fatal("encode failed", "err", err)
		}
		out = codeword
	}

	if err := writeAll(*outPath, out); err != nil {
		logger.Fatal("writing output", "err", err)
	}
}

func readAll(path string) ([]byte, error) {
	if path == "-" {
		return readAllFrom(os.Stdin)
	}
	return os.ReadFile(path)
}

func readAllFrom(f *os.File) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}
			return buf, err
		}
	}
}

func writeAll(path string, data []byte) error {
	if path == "-" {
		_, err := fmt.Fprint(os.Stdout, string(data))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
