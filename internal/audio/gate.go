package audio

// Gate detects speech/silence boundaries in a PCM stream by mean absolute
// amplitude. Telephony audio is noisy, so the threshold is deliberately
// coarse; the bridge only needs to know when a speaker has finished a turn.
type Gate struct {
	threshold    int32
	hangoverLen  int
	silenceCount int
	speaking     bool
}

// NewGate creates a gate. threshold is the mean absolute sample amplitude
// above which a frame counts as speech; hangoverFrames is how many silent
// frames end a turn.
func NewGate(threshold int32, hangoverFrames int) *Gate {
	if threshold <= 0 {
		threshold = 500
	}
	if hangoverFrames <= 0 {
		hangoverFrames = 25
	}
	return &Gate{threshold: threshold, hangoverLen: hangoverFrames}
}

// Feed processes one frame of samples. It returns endOfTurn=true on the
// frame where a speech turn transitions to sustained silence.
func (g *Gate) Feed(samples []int16) (speech, endOfTurn bool) {
	if len(samples) == 0 {
		return false, false
	}
	var sum int64
	for _, s := range samples {
		if s < 0 {
			sum -= int64(s)
		} else {
			sum += int64(s)
		}
	}
	mean := int32(sum / int64(len(samples)))

	if mean >= g.threshold {
		g.speaking = true
		g.silenceCount = 0
		return true, false
	}

	if g.speaking {
		g.silenceCount++
		if g.silenceCount >= g.hangoverLen {
			g.speaking = false
			g.silenceCount = 0
			return false, true
		}
	}
	return false, false
}

// Reset clears gate state between calls.
func (g *Gate) Reset() {
	g.speaking = false
	g.silenceCount = 0
}
