package factors

import (
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// DefaultVoiceMinDuration and DefaultVoiceMaxDuration bound a VOICE
// capture's duration in seconds (spec.md §4.2: "duration within min/max
// policy").
const (
	DefaultVoiceMinDuration = 1.0
	DefaultVoiceMaxDuration = 8.0
)

func processVoice(input any) (models.FactorDigest, error) {
	in, ok := input.(VoiceInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "VOICE: expected VoiceInput, got %T", input)
	}
	if len(in.PCM) == 0 {
		return models.FactorDigest{}, errs.Validationf("pcm", "VOICE capture is empty")
	}
	if in.Duration < DefaultVoiceMinDuration || in.Duration > DefaultVoiceMaxDuration {
		return models.FactorDigest{}, errs.Validationf("duration", "VOICE duration %.2fs out of policy range [%.2f,%.2f]", in.Duration, DefaultVoiceMinDuration, DefaultVoiceMaxDuration)
	}
	buf := make([]byte, len(in.PCM))
	copy(buf, in.PCM)
	return digest(buf), nil
}
