package app

import (
	"math"
	"time"
)

// Score maps elapsed answer time to points for a correct answer. Points decay
// linearly from maxPoints at elapsed=0 to zero at elapsed=limit, rounded to
// the nearest point. Callers reject submissions past the deadline before
// scoring, so elapsed > limit only clamps defensively.
func Score(maxPoints int, limit, elapsed time.Duration) int {
	if limit <= 0 || maxPoints <= 0 {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= limit {
		return 0
	}
	points := int(math.Round(float64(maxPoints) * float64(limit-elapsed) / float64(limit)))
	if points > maxPoints {
		points = maxPoints
	}
	return points
}
