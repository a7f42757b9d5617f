// Package config turns a small YAML document on disk into the typed
// records NADE's core packages accept (session.Options, modem.Params).
// This is deliberately outside the core: session ingests only typed
// options records and never touches a file, the same separation spec.md
// §1 draws around "configuration ingestion."
//
// Grounded on the teacher's config.go, which turns a direwolf.conf text
// file into a C struct audio_s; NADE's version is YAML instead of a
// bespoke line-oriented grammar (gopkg.in/yaml.v3, already a teacher
// dependency) but keeps the same shape: one File struct mirroring the
// document, with Options and ModemParams methods producing the runtime
// records.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nadecore/nade/errs"
	"github.com/nadecore/nade/modem"
	"github.com/nadecore/nade/session"
)

// File is the on-disk document shape.
type File struct {
	Encrypt  *bool  `yaml:"encrypt"`
	Decrypt  *bool  `yaml:"decrypt"`
	FSK      bool   `yaml:"fsk"`
	FEC      bool   `yaml:"fec"`
	LogLevel string `yaml:"log_level"`

	Modem *ModemFile `yaml:"modem"`
}

// ModemFile mirrors modem.Params for the subset worth exposing in config;
// a zero field falls back to modem.DefaultParams().
type ModemFile struct {
	SampleRate     int        `yaml:"sample_rate"`
	SymbolRate     int        `yaml:"symbol_rate"`
	Tones          [4]float64 `yaml:"tones"`
	Amplitude      int16      `yaml:"amplitude"`
	PowerThreshold float64    `yaml:"power_threshold"`
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.BadArgument, "config: read file", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Wrap(errs.BadArgument, "config: parse yaml", err)
	}
	return &f, nil
}

// Options converts the file into a session.Options, defaulting any field
// the document left unset.
func (f *File) Options() session.Options {
	opts := session.DefaultOptions()
	if f.Encrypt != nil {
		opts.Encrypt = *f.Encrypt
	}
	if f.Decrypt != nil {
		opts.Decrypt = *f.Decrypt
	}
	opts.FSKEnabled = f.FSK
	opts.FECEnabled = f.FEC
	opts.ModemParams = f.ModemParams()
	return opts
}

// ModemParams builds a modem.Params from the document's modem section,
// falling back to modem.DefaultParams() for any zero-valued field.
func (f *File) ModemParams() modem.Params {
	d := modem.DefaultParams()
	if f.Modem == nil {
		return d
	}
	p := d
	if f.Modem.SampleRate != 0 {
		p.SampleRate = f.Modem.SampleRate
	}
	if f.Modem.SymbolRate != 0 {
		p.SymbolRate = f.Modem.SymbolRate
	}
	if f.Modem.Tones != ([4]float64{}) {
		p.Tones = f.Modem.Tones
	}
	if f.Modem.Amplitude != 0 {
		p.Amplitude = f.Modem.Amplitude
	}
	if f.Modem.PowerThreshold != 0 {
		p.PowerThreshold = f.Modem.PowerThreshold
	}
	return p
}
