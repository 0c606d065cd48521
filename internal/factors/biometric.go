package factors

import (
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// FACE and FINGERPRINT never see a biometric template: the platform
// authenticator attests success or failure and a device-attested key id,
// and that is all the digest is derived from (spec.md §4.2, §6 "Platform
// authenticator interface").

func processFace(input any) (models.FactorDigest, error) {
	return processAttestation(input, "FACE")
}

func processFingerprint(input any) (models.FactorDigest, error) {
	return processAttestation(input, "FINGERPRINT")
}

func processAttestation(input any, label string) (models.FactorDigest, error) {
	in, ok := input.(AttestationInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "%s: expected AttestationInput, got %T", label, input)
	}
	if !in.OK {
		return models.FactorDigest{}, errs.Validationf("attestation", "%s: platform authenticator did not report a STRONG-class success", label)
	}
	if in.KeyID == "" {
		return models.FactorDigest{}, errs.Validationf("key_id", "%s: device-attested key id is required", label)
	}
	buf := append([]byte(label), []byte(in.KeyID)...)
	return digest(buf), nil
}
