package factors

import (
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

func processNFC(input any) (models.FactorDigest, error) {
	in, ok := input.(NFCInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "NFC: expected NFCInput, got %T", input)
	}
	if len(in.UID) == 0 {
		return models.FactorDigest{}, errs.Validationf("uid", "NFC tag UID must be non-empty")
	}
	buf := make([]byte, len(in.UID))
	copy(buf, in.UID)
	return digest(buf), nil
}
