// Package factors implements the per-FactorKind input processors (spec.md
// §4.2, component C2): validation followed by deterministic digest
// derivation. Every processor is pure, rejects before it ever hashes
// anything, and wipes its intermediate byte buffers on the way out.
package factors

import (
	"encoding/binary"
	"math"

	"github.com/rawblock/authcore/internal/crypto"
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// Processor derives a 32-byte digest from a validated, normalized input.
// Implementations never return a digest for invalid input — rejection
// happens before any hashing (spec.md §4.2).
type Processor interface {
	Process(input any) (models.FactorDigest, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(input any) (models.FactorDigest, error)

func (f ProcessorFunc) Process(input any) (models.FactorDigest, error) { return f(input) }

// registry is the pure function table keyed by FactorKind (spec.md §9:
// "dynamic dispatch over factors... tagged variant plus a pure function
// table, no inheritance").
var registry = map[models.FactorKind]Processor{
	models.FactorPIN:           ProcessorFunc(processPIN),
	models.FactorColour:        ProcessorFunc(processColour),
	models.FactorEmoji:         ProcessorFunc(processEmoji),
	models.FactorWords:         ProcessorFunc(processWords),
	models.FactorPatternNormal: ProcessorFunc(processPatternNormal),
	models.FactorPatternMicro:  ProcessorFunc(processPatternMicro),
	models.FactorRhythmTap:     ProcessorFunc(processRhythmTap),
	models.FactorMouseDraw:     ProcessorFunc(processMouseDraw),
	models.FactorStylusDraw:    ProcessorFunc(processStylusDraw),
	models.FactorImageTap:      ProcessorFunc(processImageTap),
	models.FactorVoice:         ProcessorFunc(processVoice),
	models.FactorBalance:       ProcessorFunc(processBalance),
	models.FactorNFC:           ProcessorFunc(processNFC),
	models.FactorFace:          ProcessorFunc(processFace),
	models.FactorFingerprint:   ProcessorFunc(processFingerprint),
}

// Process dispatches to the registered processor for kind. Unknown kinds
// (should be unreachable given the closed FactorKind enum) surface as
// Internal, not Validation — the caller passed a bad enum, not bad data.
func Process(kind models.FactorKind, input any) (models.FactorDigest, error) {
	p, ok := registry[kind]
	if !ok {
		return models.FactorDigest{}, errs.New(errs.Internal, "no processor registered for factor kind "+kind.String())
	}
	return p.Process(input)
}

// digest hashes buf with SHA-256 and wipes buf before returning.
func digest(buf []byte) models.FactorDigest {
	d := crypto.SHA256(buf)
	crypto.Wipe(buf)
	return d
}

// putUint32LE appends x to buf in little-endian form.
func putUint32LE(buf []byte, x uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], x)
	return append(buf, tmp[:]...)
}

// putUint64LE appends x to buf in little-endian form.
func putUint64LE(buf []byte, x uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], x)
	return append(buf, tmp[:]...)
}

// putFloat32LE appends the IEEE-754 bit pattern of x to buf, little-endian.
// Used for normalized coordinates and pressure values that live in [0,1].
func putFloat32LE(buf []byte, x float32) []byte {
	return putUint32LE(buf, math.Float32bits(x))
}
