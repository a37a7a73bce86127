package detection

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// DefaultMinConfidence is the detection confidence floor below which a frame yields no selection.
const DefaultMinConfidence = 0.30

// FilterOptions configures Select.
type FilterOptions struct {
	// MinConfidence is the inclusive floor for the winning candidate's confidence.
	MinConfidence float64
	// MinConditionConfidence drops candidates whose condition confidence (0-100) is below it.
	// Zero disables the check.
	MinConditionConfidence float64
}

// DefaultFilterOptions returns the stock floor with the condition check disabled.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{MinConfidence: DefaultMinConfidence}
}

// Select picks the candidate with the highest detection confidence. Ties go to the
// candidate seen first. It returns nil when there are no usable candidates or the
// winner is below opts.MinConfidence. Candidate metadata is carried over unchanged.
func Select(candidates []Candidate, opts FilterOptions, now time.Time) *Selected {
	usable := lo.Filter(candidates, func(c Candidate, _ int) bool {
		if math.IsNaN(c.Confidence) {
			return false
		}
		return opts.MinConditionConfidence <= 0 || c.ConditionConfidence >= opts.MinConditionConfidence
	})
	if len(usable) == 0 {
		return nil
	}

	best := lo.MaxBy(usable, func(a, b Candidate) bool {
		return a.Confidence > b.Confidence
	})
	if best.Confidence < opts.MinConfidence {
		return nil
	}

	return &Selected{Candidate: best, SelectedAt: now}
}
