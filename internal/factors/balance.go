package factors

import (
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// DefaultBalanceDuration is the fixed capture window BALANCE expects, in
// seconds. DefaultBalanceStabilityThreshold bounds the per-axis variance
// allowed during that window — too much motion means the device wasn't
// held still and the capture is rejected before it is ever hashed (spec.md
// §9 open question 3: not fixed numerically in the source).
const (
	DefaultBalanceDuration           = 2.0
	DefaultBalanceStabilityThreshold = 0.05
	balanceDurationToleranceFraction = 0.1
)

func processBalance(input any) (models.FactorDigest, error) {
	in, ok := input.(BalanceInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "BALANCE: expected BalanceInput, got %T", input)
	}
	if len(in.Samples) == 0 {
		return models.FactorDigest{}, errs.Validationf("samples", "BALANCE capture is empty")
	}
	tolerance := DefaultBalanceDuration * balanceDurationToleranceFraction
	if in.Duration < DefaultBalanceDuration-tolerance || in.Duration > DefaultBalanceDuration+tolerance {
		return models.FactorDigest{}, errs.Validationf("duration", "BALANCE duration %.2fs must be within %.2fs of the fixed %.2fs window", in.Duration, tolerance, DefaultBalanceDuration)
	}
	if v := balanceVariance(in.Samples); v > DefaultBalanceStabilityThreshold {
		return models.FactorDigest{}, errs.Validationf("samples", "BALANCE capture unstable: variance %.4f exceeds threshold %.4f", v, DefaultBalanceStabilityThreshold)
	}

	buf := make([]byte, 0, len(in.Samples)*12)
	for _, s := range in.Samples {
		buf = putFloat32LE(buf, s.X)
		buf = putFloat32LE(buf, s.Y)
		buf = putFloat32LE(buf, s.Z)
	}
	return digest(buf), nil
}

// balanceVariance returns the maximum per-axis sample variance across
// x, y, z, used as a simple stability gate: a device resting on a flat
// surface should show near-zero variance on each axis.
func balanceVariance(samples []AccelSample) float64 {
	n := float64(len(samples))
	var sx, sy, sz float64
	for _, s := range samples {
		sx += float64(s.X)
		sy += float64(s.Y)
		sz += float64(s.Z)
	}
	mx, my, mz := sx/n, sy/n, sz/n

	var vx, vy, vz float64
	for _, s := range samples {
		dx, dy, dz := float64(s.X)-mx, float64(s.Y)-my, float64(s.Z)-mz
		vx += dx * dx
		vy += dy * dy
		vz += dz * dz
	}
	vx, vy, vz = vx/n, vy/n, vz/n

	max := vx
	if vy > max {
		max = vy
	}
	if vz > max {
		max = vz
	}
	return max
}
