package factors

import (
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// PINMinLength and PINMaxLength bound a valid PIN (spec.md §4.2).
const (
	PINMinLength = 4
	PINMaxLength = 12
)

func processPIN(input any) (models.FactorDigest, error) {
	in, ok := input.(PINInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "PIN: expected PINInput, got %T", input)
	}
	n := len(in.Digits)
	if n < PINMinLength || n > PINMaxLength {
		return models.FactorDigest{}, errs.Validationf("digits", "PIN length must be between %d and %d, got %d", PINMinLength, PINMaxLength, n)
	}
	for _, r := range in.Digits {
		if r < '0' || r > '9' {
			return models.FactorDigest{}, errs.Validationf("digits", "PIN must contain digits only")
		}
	}
	return digest([]byte(in.Digits)), nil
}

// ColourMinLength, ColourMaxLength and ColourPaletteSize bound a valid
// COLOUR selection (spec.md §4.2).
const (
	ColourMinLength   = 3
	ColourMaxLength   = 6
	ColourPaletteSize = 256
)

func processColour(input any) (models.FactorDigest, error) {
	return processIndexList(input, "COLOUR", ColourMinLength, ColourMaxLength, ColourPaletteSize, true)
}

// EmojiMinLength, EmojiMaxLength and EmojiSetSize bound a valid EMOJI
// selection (spec.md §4.2).
const (
	EmojiMinLength = 3
	EmojiMaxLength = 8
	EmojiSetSize   = 256
)

func processEmoji(input any) (models.FactorDigest, error) {
	return processIndexList(input, "EMOJI", EmojiMinLength, EmojiMaxLength, EmojiSetSize, true)
}

// WordsMinLength, WordsMaxLength and WordsDictionarySize bound a valid
// WORDS selection (spec.md §4.2). Word indices are serialized as 2-byte LE
// values rather than 1-byte index bytes, per the table in spec.md §4.2.
const (
	WordsMinLength      = 3
	WordsMaxLength      = 10
	WordsDictionarySize = 1 << 16
)

func processWords(input any) (models.FactorDigest, error) {
	in, ok := input.(IndexListInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "WORDS: expected IndexListInput, got %T", input)
	}
	n := len(in.Indices)
	if n < WordsMinLength || n > WordsMaxLength {
		return models.FactorDigest{}, errs.Validationf("indices", "WORDS length must be between %d and %d, got %d", WordsMinLength, WordsMaxLength, n)
	}
	if err := rejectDuplicates(in.Indices, "indices"); err != nil {
		return models.FactorDigest{}, err
	}
	buf := make([]byte, 0, n*2)
	for _, idx := range in.Indices {
		if idx < 0 || idx >= WordsDictionarySize {
			return models.FactorDigest{}, errs.Validationf("indices", "WORDS index %d out of dictionary range", idx)
		}
		buf = append(buf, byte(idx), byte(idx>>8)) // 2-byte LE per index
	}
	return digest(buf), nil
}

// processIndexList implements the shared COLOUR/EMOJI contract: an ordered
// list of distinct indices within [0, paletteSize), serialized as one byte
// per index (spec.md §4.2 table).
func processIndexList(input any, name string, minLen, maxLen, paletteSize int, rejectDupes bool) (models.FactorDigest, error) {
	in, ok := input.(IndexListInput)
	if !ok {
		return models.FactorDigest{}, errs.Validationf("input", "%s: expected IndexListInput, got %T", name, input)
	}
	n := len(in.Indices)
	if n < minLen || n > maxLen {
		return models.FactorDigest{}, errs.Validationf("indices", "%s length must be between %d and %d, got %d", name, minLen, maxLen, n)
	}
	if rejectDupes {
		if err := rejectDuplicates(in.Indices, "indices"); err != nil {
			return models.FactorDigest{}, err
		}
	}
	buf := make([]byte, 0, n)
	for _, idx := range in.Indices {
		if idx < 0 || idx >= paletteSize {
			return models.FactorDigest{}, errs.Validationf("indices", "%s index %d out of range [0,%d)", name, idx, paletteSize)
		}
		buf = append(buf, byte(idx))
	}
	return digest(buf), nil
}

func rejectDuplicates(indices []int, field string) error {
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			return errs.Validationf(field, "duplicate index %d not allowed", idx)
		}
		seen[idx] = true
	}
	return nil
}
