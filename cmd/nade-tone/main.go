// Command nade-tone generates raw 16-bit signed little-endian 4-FSK PCM
// for the ASCII string given with --text, for listening to or feeding
// into another tool's analysis. A quick test utility, the
// spiritual equivalent of the teacher's cmd/gen_tone, but for NADE's
// four-tone modem instead of the two-tone AFSK generator.
package main

import (
	"encoding/binary"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/nadecore/nade/modem"
)

func main() {
	var (
		text    = pflag.StringP("text", "t", "NADE", "ASCII text to modulate")
		outPath = pflag.StringP("out", "o", "-", "output file for raw PCM, - for stdout")
	)
	pflag.Parse()

	logger := log.Default()

	mod, err := modem.NewModulator(modem.DefaultParams())
	if err != nil {
		logger.Fatal("building modulator", "err", err)
	}
	pcm := mod.Modulate([]byte(*text), nil)

	raw := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}

	out := os.Stdout
	if *outPath != "-" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Fatal("creating output file", "err", err)
		}
		defer f.Close()
		out = f
	}
	if _, err := out.Write(raw); err != nil {
		logger.Fatal("writing pcm", "err", err)
	}
	logger.Info("generated tone", "symbols", mod.SymbolsSent(), "samples", len(pcm))
}
