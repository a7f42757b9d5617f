package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_ControlRoundTrip(t *testing.T) {
	buf := Control{Subtype: ControlHangup}.Marshal(nil)
	f, consumed, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	c, ok := f.(Control)
	require.True(t, ok)
	assert.Equal(t, ControlHangup, c.Subtype)
}

func Test_HandshakeRoundTrip(t *testing.T) {
	var h Handshake
	h.Body[0] = 1
	h.Body[83] = 0xFF
	buf := h.Marshal(nil)
	f, consumed, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	got, ok := f.(Handshake)
	require.True(t, ok)
	assert.Equal(t, h.Body, got.Body)
}

func Test_HandshakeRejectsWrongLength(t *testing.T) {
	buf := []byte{byte(KindHandshake), 10, 0}
	buf = append(buf, make([]byte, 10)...)
	_, _, err := Parse(buf)
	assert.Error(t, err)
}

func Test_ParseNeedsCompleteFrame(t *testing.T) {
	buf := []byte{byte(KindControl), 1, 0} // header says length 1, no body yet
	f, consumed, err := Parse(buf)
	assert.NoError(t, err)
	assert.Nil(t, f)
	assert.Equal(t, 0, consumed)
}

func Test_BodyExceedingMaxIsReportedAndConsumable(t *testing.T) {
	body := make([]byte, MaxBodyLen+1)
	buf := Cipher{Data: body}.Marshal(nil)
	f, consumed, err := Parse(buf)
	assert.Error(t, err)
	assert.Nil(t, f)
	assert.Equal(t, len(buf), consumed) // caller can still skip past it
}

func Test_AudioPayloadRoundTrip(t *testing.T) {
	p := AudioPayload{CodecVer: 1, Seq: 42, Samples: 320, ADPCMData: []byte{1, 2, 3, 4}}
	buf := p.Marshal(nil)
	got, err := ParsePayload(buf)
	require.NoError(t, err)
	audio, ok := got.(AudioPayload)
	require.True(t, ok)
	assert.Equal(t, p, audio)
}

func Test_AudioPayloadRejectsLengthMismatch(t *testing.T) {
	p := AudioPayload{CodecVer: 1, Seq: 1, Samples: 320, ADPCMData: []byte{1, 2, 3}}
	buf := p.Marshal(nil)
	buf = append(buf, 0xFF) // extra trailing byte not reflected in adpcm_len
	_, err := ParsePayload(buf)
	assert.Error(t, err)
}

func Test_KeepaliveAndHangupPayloadRoundTrip(t *testing.T) {
	got, err := ParsePayload(KeepalivePayload{}.Marshal(nil))
	require.NoError(t, err)
	assert.Equal(t, PayloadKeepalive, got.PayloadKind())

	got, err = ParsePayload(HangupPayload{}.Marshal(nil))
	require.NoError(t, err)
	assert.Equal(t, PayloadHangup, got.PayloadKind())
}

// Property: for any sequence of frames concatenated on the wire, Parse
// recovers exactly that sequence in order, consuming precisely
// len(wire) bytes in total.
func Test_FrameStreamRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 16).Draw(t, "n")
		var wire []byte
		var kinds []Kind

		for i := 0; i < n; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "kind") {
			case 0:
				wire = Control{Subtype: ControlKeepalive}.Marshal(wire)
				kinds = append(kinds, KindControl)
			case 1:
				data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "cipherData")
				wire = Cipher{Data: data}.Marshal(wire)
				kinds = append(kinds, KindCipher)
			case 2:
				data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "plainData")
				wire = Plaintext{Data: data}.Marshal(wire)
				kinds = append(kinds, KindPlaintext)
			}
		}

		remaining := wire
		var gotKinds []Kind
		for len(remaining) > 0 {
			f, consumed, err := Parse(remaining)
			require.NoError(t, err)
			require.Greater(t, consumed, 0)
			gotKinds = append(gotKinds, f.Kind())
			remaining = remaining[consumed:]
		}
		assert.Equal(t, kinds, gotKinds)
	})
}
