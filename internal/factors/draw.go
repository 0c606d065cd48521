package factors

import (
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// DrawMinPoints is the minimum point count for MOUSE_DRAW and STYLUS_DRAW
// captures (spec.md §4.2).
const DrawMinPoints = 10

func processMouseDraw(input any) (models.FactorDigest, error) {
	in, ok := input.(DrawInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "MOUSE_DRAW: expected DrawInput, got %T", input)
	}
	if len(in.Points) < DrawMinPoints {
		return models.FactorDigest{}, errs.Validationf("points", "MOUSE_DRAW requires at least %d points, got %d", DrawMinPoints, len(in.Points))
	}
	buf := make([]byte, 0, len(in.Points)*12)
	for _, p := range in.Points {
		buf = putUint32LE(buf, uint32(int32(p.X)))
		buf = putUint32LE(buf, uint32(int32(p.Y)))
		buf = putUint32LE(buf, uint32(p.T))
	}
	return digest(buf), nil
}

func processStylusDraw(input any) (models.FactorDigest, error) {
	in, ok := input.(StylusInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "STYLUS_DRAW: expected StylusInput, got %T", input)
	}
	if len(in.Points) < DrawMinPoints {
		return models.FactorDigest{}, errs.Validationf("points", "STYLUS_DRAW requires at least %d points, got %d", DrawMinPoints, len(in.Points))
	}
	buf := make([]byte, 0, len(in.Points)*16)
	for _, p := range in.Points {
		if p.Pressure < 0 || p.Pressure > 1 {
			return models.FactorDigest{}, errs.Validationf("points", "STYLUS_DRAW pressure %f out of range [0,1]", p.Pressure)
		}
		buf = putUint32LE(buf, uint32(int32(p.X)))
		buf = putUint32LE(buf, uint32(int32(p.Y)))
		buf = putFloat32LE(buf, p.Pressure)
		buf = putUint32LE(buf, uint32(p.T))
	}
	return digest(buf), nil
}
