package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUlaw(t *testing.T) {
	// 0xFF is positive zero, 0x7F negative zero, 0x00 max-magnitude negative.
	samples := DecodeUlaw([]byte{0xFF, 0x7F, 0x00})
	require.Len(t, samples, 3)
	assert.Equal(t, int16(0), samples[0])
	assert.Equal(t, int16(0), samples[1])
	assert.Equal(t, int16(-32124), samples[2])

	assert.Empty(t, DecodeUlaw(nil))
}

func TestDecodeUlawSymmetry(t *testing.T) {
	// Sign bit flips amplitude sign, magnitude is identical.
	for b := 0; b < 0x80; b++ {
		pos := decodeUlawSample(byte(b) | 0x80)
		neg := decodeUlawSample(byte(b))
		if pos == 0 && neg == 0 {
			continue
		}
		assert.Equal(t, pos, -neg, "byte %#x", b)
	}
}

func TestSamplesToWAV(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767}
	wav := SamplesToWAV(samples, 8000)

	require.Len(t, wav, 44+len(samples)*2)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(8000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, uint32(len(samples)*2), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, int16(1000), int16(binary.LittleEndian.Uint16(wav[46:48])))
}

func TestGateTurnBoundary(t *testing.T) {
	g := NewGate(500, 3)

	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 2000
	}
	quiet := make([]int16, 160)

	speech, end := g.Feed(loud)
	assert.True(t, speech)
	assert.False(t, end)

	// Two silent frames: not yet end of turn.
	for i := 0; i < 2; i++ {
		speech, end = g.Feed(quiet)
		assert.False(t, speech)
		assert.False(t, end)
	}

	// Third silent frame crosses the hangover.
	_, end = g.Feed(quiet)
	assert.True(t, end)

	// Silence with no preceding speech never ends a turn.
	for i := 0; i < 10; i++ {
		_, end = g.Feed(quiet)
		assert.False(t, end)
	}
}

func TestGateReset(t *testing.T) {
	g := NewGate(500, 2)
	loud := make([]int16, 10)
	for i := range loud {
		loud[i] = 5000
	}

	g.Feed(loud)
	g.Reset()

	_, end := g.Feed(make([]int16, 10))
	assert.False(t, end)

	_, end = g.Feed(make([]int16, 10))
	assert.False(t, end)
}
