package factors

import (
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// PatternMinPoints and PatternMaxPoints bound a valid pattern/draw gesture
// (spec.md §4.2).
const (
	PatternMinPoints = 1
	PatternMaxPoints = 300
)

func validatePatternPoints(points []Point) error {
	n := len(points)
	if n < PatternMinPoints || n > PatternMaxPoints {
		return errs.Validationf("points", "pattern must have between %d and %d points, got %d", PatternMinPoints, PatternMaxPoints, n)
	}
	return nil
}

// processPatternNormal derives a speed-invariant digest: timestamps are
// rescaled onto a fixed [0,1000] axis relative to the gesture's own
// duration, so the same shape drawn faster or slower produces the same
// digest (spec.md §4.2, §8 "Pattern normalization").
func processPatternNormal(input any) (models.FactorDigest, error) {
	in, ok := input.(PatternInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "PATTERN_NORMAL: expected PatternInput, got %T", input)
	}
	if err := validatePatternPoints(in.Points); err != nil {
		return models.FactorDigest{}, err
	}

	t0 := in.Points[0].T
	tLast := in.Points[len(in.Points)-1].T
	span := tLast - t0

	buf := make([]byte, 0, len(in.Points)*12)
	for _, p := range in.Points {
		buf = putUint32LE(buf, uint32(int32(p.X)))
		buf = putUint32LE(buf, uint32(int32(p.Y)))
		var tNorm uint32
		if span > 0 {
			tNorm = uint32(float64(p.T-t0) / float64(span) * 1000.0)
		}
		buf = putUint32LE(buf, tNorm)
	}
	return digest(buf), nil
}

// processPatternMicro derives a speed-DEPENDENT digest: timestamps are
// kept as raw millisecond offsets from the gesture's start, so the same
// shape drawn at a different cadence produces a different digest (spec.md
// §4.2, §8 "Pattern normalization": PATTERN_MICRO is NOT invariant under
// non-identity time scaling).
func processPatternMicro(input any) (models.FactorDigest, error) {
	in, ok := input.(PatternInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "PATTERN_MICRO: expected PatternInput, got %T", input)
	}
	if err := validatePatternPoints(in.Points); err != nil {
		return models.FactorDigest{}, err
	}

	t0 := in.Points[0].T
	buf := make([]byte, 0, len(in.Points)*12)
	for _, p := range in.Points {
		buf = putUint32LE(buf, uint32(int32(p.X)))
		buf = putUint32LE(buf, uint32(int32(p.Y)))
		buf = putUint32LE(buf, uint32(p.T-t0))
	}
	return digest(buf), nil
}
