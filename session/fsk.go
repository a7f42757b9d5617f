package session

import "github.com/nadecore/nade/errs"

// FSKModulate encodes data through the session's FSK modulator and
// queues the resulting PCM samples, returning the number of samples
// queued. It returns a BadArgument error and queues nothing when
// Options.FSKEnabled is false.
func (s *Session) FSKModulate(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.FSKEnabled {
		return 0, errs.New(errs.BadArgument, "session: fsk modem not enabled")
	}
	pcm := s.modulator.Modulate(data, nil)
	s.fskModPCMRing.Push(pcm...)
	return len(pcm), nil
}

// FSKPullModulated copies up to len(buf) modulated PCM samples queued
// by FSKModulate into buf.
func (s *Session) FSKPullModulated(buf []int16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	got := s.fskModPCMRing.Pop(len(buf))
	copy(buf, got)
	return len(got)
}

// FSKFeedAudio feeds received PCM samples (e.g. from a sound card
// capture buffer) to the demodulator and queues any complete bytes
// recovered.
func (s *Session) FSKFeedAudio(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.FSKEnabled {
		return errs.New(errs.BadArgument, "session: fsk modem not enabled")
	}
	out := s.demodulator.FeedSamples(samples, nil)
	s.fskDemodBytesRing.Push(out...)
	return nil
}

// FSKPullDemodulated copies up to len(buf) demodulated bytes into buf.
func (s *Session) FSKPullDemodulated(buf []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	got := s.fskDemodBytesRing.Pop(len(buf))
	copy(buf, got)
	return len(got)
}
