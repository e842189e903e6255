package avatar3d

import "fmt"

// MouthCue holds one viseme over an interval of the audio track, in seconds.
type MouthCue struct {
	Start float64    `json:"start"`
	End   float64    `json:"end"`
	Value VisemeCode `json:"value"`
}

func (c MouthCue) Contains(t float64) bool {
	return c.Start <= t && t <= c.End
}

// ValidateCues checks the ordering precondition the scheduler relies on:
// ascending by start, start <= end, and no cue starting before the previous one ends.
// Touching boundaries (prev.End == next.Start) are allowed.
func ValidateCues(cues []MouthCue) error {
	for i, c := range cues {
		if c.Start > c.End {
			return fmt.Errorf("%w: cue %d ends before it starts (%.3f > %.3f)", ErrInvalidCues, i, c.Start, c.End)
		}
		if !c.Value.Valid() {
			return fmt.Errorf("%w: cue %d: %w", ErrInvalidCues, i, ErrUnknownVisemeCode)
		}
		if i == 0 {
			continue
		}
		prev := cues[i-1]
		if c.Start < prev.Start {
			return fmt.Errorf("%w: cue %d starts at %.3f before cue %d at %.3f", ErrInvalidCues, i, c.Start, i-1, prev.Start)
		}
		if c.Start < prev.End {
			return fmt.Errorf("%w: cue %d overlaps cue %d", ErrInvalidCues, i, i-1)
		}
	}
	return nil
}
