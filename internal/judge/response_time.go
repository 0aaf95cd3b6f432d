package judge

import (
	"time"

	"github.com/dialcheck/dialcheck/internal/models"
)

// ResponseTimeFromTranscript computes the mean seconds between each
// evaluator turn and the next agent turn, using transcript timestamps.
// Returns 0 and false when the transcript has no usable timestamp pairs,
// in which case the caller should fall back to the judge's estimate.
func ResponseTimeFromTranscript(turns []models.ConversationTurn) (float64, bool) {
	var total time.Duration
	var count int

	for i := 0; i < len(turns)-1; i++ {
		cur, next := turns[i], turns[i+1]
		if cur.Speaker != models.SpeakerEvaluator || next.Speaker != models.SpeakerAgent {
			continue
		}
		if cur.Timestamp.IsZero() || next.Timestamp.IsZero() {
			continue
		}
		gap := next.Timestamp.Sub(cur.Timestamp)
		if gap <= 0 {
			continue
		}
		total += gap
		count++
	}

	if count == 0 {
		return 0, false
	}
	return total.Seconds() / float64(count), true
}
