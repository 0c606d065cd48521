package factors

import (
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// DefaultImageTapRequiredTaps and DefaultImageTapGridSize are the policy
// defaults for IMAGE_TAP (spec.md §9 open question 3: left to be
// calibrated empirically). The fuzzy matching radius lives at comparison
// time (internal/compare), not here — the digest itself is computed over
// coordinates binned to a fixed grid, which is what makes fuzzy comparison
// possible without ever relaxing the digest derivation.
const (
	DefaultImageTapRequiredTaps = 2
	DefaultImageTapGridSize     = 32
)

func processImageTap(input any) (models.FactorDigest, error) {
	in, ok := input.(ImageTapInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "IMAGE_TAP: expected ImageTapInput, got %T", input)
	}
	required := in.RequiredTaps
	if required <= 0 {
		required = DefaultImageTapRequiredTaps
	}
	grid := in.GridSize
	if grid <= 0 {
		grid = DefaultImageTapGridSize
	}
	if in.ImageID == "" {
		return models.FactorDigest{}, errs.Validationf("image_id", "IMAGE_TAP requires a non-empty image id")
	}
	if len(in.Taps) != required {
		return models.FactorDigest{}, errs.Validationf("taps", "IMAGE_TAP requires exactly %d taps, got %d", required, len(in.Taps))
	}

	buf := []byte(in.ImageID)
	for _, t := range in.Taps {
		if t.X < 0 || t.X > 1 || t.Y < 0 || t.Y > 1 {
			return models.FactorDigest{}, errs.Validationf("taps", "IMAGE_TAP coordinates must be normalized to [0,1]")
		}
		bx, by := BinImageTapCoord(t, grid)
		buf = append(buf, byte(bx), byte(by))
	}
	return digest(buf), nil
}

// BinImageTapCoord maps a normalized (x,y) tap into a gridSize x gridSize
// bucket. Exported so internal/compare can re-derive the same buckets a
// verification submission would fall into when building the fuzzy
// candidate set (spec.md §4.4).
func BinImageTapCoord(t Tap, gridSize int) (int, int) {
	bx := int(t.X * float32(gridSize))
	by := int(t.Y * float32(gridSize))
	if bx >= gridSize {
		bx = gridSize - 1
	}
	if by >= gridSize {
		by = gridSize - 1
	}
	return bx, by
}
