package models

import (
	"testing"

	"github.com/rawblock/authcore/internal/errs"
)

func validDigests(kinds ...FactorKind) map[FactorKind]FactorDigest {
	out := make(map[FactorKind]FactorDigest, len(kinds))
	for i, k := range kinds {
		var d FactorDigest
		d[0] = byte(i + 1)
		out[k] = d
	}
	return out
}

func TestEnrollmentValidateHappyPath(t *testing.T) {
	r := &EnrollmentRecord{
		Digests: validDigests(FactorPIN, FactorColour, FactorEmoji, FactorWords, FactorFace, FactorNFC),
		Consent: Consent{Terms: true, Privacy: true, Processing: true},
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid enrollment, got %v", err)
	}
}

func TestEnrollmentValidateCardinality(t *testing.T) {
	r := &EnrollmentRecord{
		Digests: validDigests(FactorPIN, FactorColour, FactorFace),
		Consent: Consent{Terms: true, Privacy: true, Processing: true},
	}
	err := r.Validate()
	if err == nil || errs.KindOf(err) != errs.Validation {
		t.Fatalf("expected Validation error for too few factors, got %v", err)
	}
}

func TestEnrollmentValidateConsent(t *testing.T) {
	r := &EnrollmentRecord{
		Digests: validDigests(FactorPIN, FactorColour, FactorEmoji, FactorWords, FactorFace, FactorNFC),
		Consent: Consent{Terms: true, Privacy: true, Processing: false},
	}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected validation failure for incomplete consent")
	}
}

func TestEnrollmentValidateSingleCategoryRejected(t *testing.T) {
	r := &EnrollmentRecord{
		Digests: validDigests(FactorPIN, FactorColour, FactorEmoji, FactorWords, FactorPatternNormal),
		Consent: Consent{Terms: true, Privacy: true, Processing: true},
	}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected validation failure: all factors are KNOWLEDGE, need >=2 categories")
	}
}

func TestEnrollmentValidatePatternMutualExclusion(t *testing.T) {
	r := &EnrollmentRecord{
		Digests: validDigests(FactorPIN, FactorColour, FactorEmoji, FactorWords, FactorPatternNormal, FactorPatternMicro),
		Consent: Consent{Terms: true, Privacy: true, Processing: true},
	}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected validation failure: PATTERN_NORMAL and PATTERN_MICRO are mutually exclusive")
	}
}

func TestFactorKindsNaturalOrder(t *testing.T) {
	r := &EnrollmentRecord{
		Digests: validDigests(FactorNFC, FactorPIN, FactorEmoji),
	}
	got := r.FactorKinds()
	if len(got) != 3 || got[0] != FactorPIN || got[1] != FactorEmoji || got[2] != FactorNFC {
		t.Fatalf("expected natural enumeration order, got %v", got)
	}
}
