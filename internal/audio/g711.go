// Package audio handles the telephony media formats: G.711 mu-law decode,
// WAV encoding for stored turn audio, and a simple energy gate for turn
// boundary detection.
package audio

var ulawTable [256]int16

func init() {
	for i := range 256 {
		ulawTable[i] = decodeUlawSample(byte(i))
	}
}

func decodeUlawSample(b byte) int16 {
	b = ^b
	sign := int16(1)
	if b&0x80 != 0 {
		sign = -1
		b &= 0x7F
	}
	exponent := int16((b >> 4) & 0x07)
	mantissa := int16(b & 0x0F)
	sample := (mantissa<<3 + 0x84) << exponent
	sample -= 0x84
	return sign * sample
}

// DecodeUlaw expands 8-bit mu-law bytes to 16-bit PCM samples.
func DecodeUlaw(data []byte) []int16 {
	samples := make([]int16, len(data))
	for i, b := range data {
		samples[i] = ulawTable[b]
	}
	return samples
}

func encodeUlawSample(sample int16) byte {
	const bias = 0x84
	s := int32(sample)
	var sign byte
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > 32635 {
		s = 32635
	}
	s += bias

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

// EncodeUlaw compresses 16-bit PCM samples to 8-bit mu-law bytes.
func EncodeUlaw(samples []int16) []byte {
	data := make([]byte, len(samples))
	for i, s := range samples {
		data[i] = encodeUlawSample(s)
	}
	return data
}
