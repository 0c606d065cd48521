package compare

import (
	"testing"

	"github.com/rawblock/authcore/internal/factors"
	"github.com/rawblock/authcore/pkg/models"
)

func TestExactMatch(t *testing.T) {
	a := [models.DigestSize]byte{1, 2, 3}
	b := a
	submitted := a
	if !Exact(&submitted, &b) {
		t.Fatalf("expected equal digests to match")
	}
}

func TestExactMismatch(t *testing.T) {
	a := [models.DigestSize]byte{1, 2, 3}
	b := [models.DigestSize]byte{1, 2, 4}
	submitted := a
	if Exact(&submitted, &b) {
		t.Fatalf("expected different digests to not match")
	}
}

func TestExactWipesSubmitted(t *testing.T) {
	a := [models.DigestSize]byte{9, 9, 9}
	b := a
	submitted := a
	Exact(&submitted, &b)
	var zero [models.DigestSize]byte
	if submitted != zero {
		t.Fatalf("expected submitted buffer to be wiped after comparison")
	}
}

func TestAnyMatchFindsCandidateAnywhereInSet(t *testing.T) {
	want := [models.DigestSize]byte{7, 7, 7}
	candidates := [][models.DigestSize]byte{
		{1, 1, 1},
		{2, 2, 2},
		want,
		{3, 3, 3},
	}
	submitted := want
	if !AnyMatch(&submitted, candidates) {
		t.Fatalf("expected a match when the candidate set contains the submitted digest")
	}
}

func TestAnyMatchNoneMatch(t *testing.T) {
	submitted := [models.DigestSize]byte{5, 5, 5}
	candidates := [][models.DigestSize]byte{{1}, {2}, {3}}
	if AnyMatch(&submitted, candidates) {
		t.Fatalf("expected no match against an unrelated candidate set")
	}
}

func TestIsFuzzyClassification(t *testing.T) {
	if !IsFuzzy(models.FactorImageTap) {
		t.Fatalf("IMAGE_TAP should be fuzzy")
	}
	if !IsFuzzy(models.FactorBalance) {
		t.Fatalf("BALANCE should be fuzzy")
	}
	if IsFuzzy(models.FactorPIN) {
		t.Fatalf("PIN should not be fuzzy")
	}
}

func TestImageTapCandidateSetContainsNeighborMatch(t *testing.T) {
	enrolled := factors.ImageTapInput{ImageID: "img1", Taps: []factors.Tap{{X: 0.10, Y: 0.10}}, GridSize: 32, RequiredTaps: 1}
	submitted := factors.ImageTapInput{ImageID: "img1", Taps: []factors.Tap{{X: 0.135, Y: 0.10}}, GridSize: 32, RequiredTaps: 1}

	enrolledDigest, err := factors.Process(models.FactorImageTap, enrolled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	candidates := factors.ImageTapCandidateDigests(submitted)

	submittedArr := [models.DigestSize]byte(enrolledDigest)
	if !AnyMatch(&submittedArr, candidates) {
		t.Fatalf("expected a neighboring-bucket tap to be within the fuzzy candidate set")
	}
}
