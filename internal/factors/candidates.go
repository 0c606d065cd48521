package factors

import "github.com/rawblock/authcore/pkg/models"

// ImageTapCandidateDigests rebuilds the digest that processImageTap would
// have produced for every neighboring grid bucket of each submitted tap (the
// 8 adjacent buckets plus the bucket itself), so internal/compare can run a
// constant-time any-of-candidate-set match against an enrollment digest that
// was derived from a slightly different, but adjacent, set of buckets
// (spec.md §4.4 "fuzzy" note). Candidate count grows as 9^len(taps); callers
// are expected to keep RequiredTaps small (policy default 2).
func ImageTapCandidateDigests(in ImageTapInput) [][models.DigestSize]byte {
	grid := in.GridSize
	if grid <= 0 {
		grid = DefaultImageTapGridSize
	}
	buckets := make([][2]int, len(in.Taps))
	for i, t := range in.Taps {
		bx, by := BinImageTapCoord(t, grid)
		buckets[i] = [2]int{bx, by}
	}

	var out [][models.DigestSize]byte
	var walk func(idx int, acc []byte)
	walk = func(idx int, acc []byte) {
		if idx == len(buckets) {
			d := digest(append([]byte(nil), acc...))
			out = append(out, [models.DigestSize]byte(d))
			return
		}
		bx, by := buckets[idx][0], buckets[idx][1]
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				nx, ny := bx+dx, by+dy
				if nx < 0 || nx >= grid || ny < 0 || ny >= grid {
					continue
				}
				next := append(append([]byte(nil), acc...), byte(nx), byte(ny))
				walk(idx+1, next)
			}
		}
	}
	walk(0, []byte(in.ImageID))
	return out
}

// BalanceCandidateDigests rebuilds digests for small axis-aligned
// perturbations of a BALANCE sample set around the submitted capture's
// sample means, so a stance that is stable but not bit-identical to the
// enrollment capture can still match via internal/compare's any-of-candidate
// comparator. deltaPerAxis is the perturbation step (spec.md §4.4).
func BalanceCandidateDigests(in BalanceInput, deltaPerAxis float32) [][models.DigestSize]byte {
	var out [][models.DigestSize]byte
	for _, dx := range []float32{-deltaPerAxis, 0, deltaPerAxis} {
		for _, dy := range []float32{-deltaPerAxis, 0, deltaPerAxis} {
			for _, dz := range []float32{-deltaPerAxis, 0, deltaPerAxis} {
				buf := make([]byte, 0, len(in.Samples)*12)
				for _, s := range in.Samples {
					buf = putFloat32LE(buf, s.X+dx)
					buf = putFloat32LE(buf, s.Y+dy)
					buf = putFloat32LE(buf, s.Z+dz)
				}
				d := digest(buf)
				out = append(out, [models.DigestSize]byte(d))
			}
		}
	}
	return out
}
