package factors

// Point is a single (x, y, t) sample shared by PATTERN_NORMAL, PATTERN_MICRO
// and MOUSE_DRAW inputs. T is a monotonic timestamp in milliseconds.
type Point struct {
	X, Y int32
	T    int64
}

// StylusPoint extends Point with a normalized pressure reading in [0,1].
type StylusPoint struct {
	X, Y     int32
	Pressure float32
	T        int64
}

// AccelSample is one (x, y, z) accelerometer reading for the BALANCE
// factor.
type AccelSample struct {
	X, Y, Z float32
}

// Tap is a single normalized (x, y) point in [0,1]^2 for the IMAGE_TAP
// factor.
type Tap struct {
	X, Y float32
}

// PINInput is the raw digit-string input for the PIN factor.
type PINInput struct {
	Digits string
}

// IndexListInput is an ordered list of palette/emoji/word indices, used by
// COLOUR, EMOJI and WORDS.
type IndexListInput struct {
	Indices []int
}

// PatternInput is an ordered sequence of (x,y,t) points for
// PATTERN_NORMAL/PATTERN_MICRO.
type PatternInput struct {
	Points []Point
}

// RhythmInput is a sequence of tap timestamps plus a per-enrollment nonce,
// for RHYTHM_TAP.
type RhythmInput struct {
	TapsMs []int64
	Nonce  uint64
}

// DrawInput is an ordered sequence of (x,y,t) points for MOUSE_DRAW.
type DrawInput struct {
	Points []Point
}

// StylusInput is an ordered sequence of (x,y,pressure,t) points for
// STYLUS_DRAW.
type StylusInput struct {
	Points []StylusPoint
}

// ImageTapInput is an image identifier plus an ordered list of normalized
// tap coordinates, for IMAGE_TAP. RequiredTaps and GridSize are policy
// parameters (spec.md §9 open question 3: "not fixed numerically in the
// source; treat as configurable policy"); zero means "use the package
// default".
type ImageTapInput struct {
	ImageID      string
	Taps         []Tap
	RequiredTaps int
	GridSize     int
}

// VoiceInput is a raw PCM buffer plus its duration, for VOICE.
type VoiceInput struct {
	PCM      []byte
	Duration float64 // seconds
}

// BalanceInput is a fixed-duration accelerometer capture, for BALANCE.
type BalanceInput struct {
	Samples  []AccelSample
	Duration float64 // seconds
}

// NFCInput is a tag UID, for NFC.
type NFCInput struct {
	UID []byte
}

// AttestationInput is a platform authenticator's success signal, for
// FACE/FINGERPRINT. The core never sees a biometric template — only the
// attestation outcome and an opaque device-attested key identifier.
type AttestationInput struct {
	KeyID string
	OK    bool
}
