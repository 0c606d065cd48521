// Package fraud implements the fraud detector (C5): seven independent
// scoring strategies summed into a single decision, grounded on the
// teacher's composite real-time risk scorer — same "each signal adds
// weighted points, total capped and classified into bands" shape, swapped
// from transaction heuristics to authentication-attempt heuristics.
package fraud

import (
	"math"
	"sync"
	"time"

	"github.com/rawblock/authcore/pkg/models"
)

// Decision classifies a total fraud score into an action band (spec.md §4.5).
type Decision string

const (
	DecisionAllow     Decision = "ALLOW"
	DecisionWarn      Decision = "WARN"
	DecisionChallenge Decision = "CHALLENGE"
	DecisionBlock     Decision = "BLOCK"
)

// Thresholds are the score boundaries separating decision bands. Defaults
// match spec.md §4.5: <30 ALLOW, 30-59 WARN, 60-79 CHALLENGE, >=80 BLOCK.
type Thresholds struct {
	Warn      int
	Challenge int
	Block     int
}

// DefaultThresholds matches the spec's stated defaults.
var DefaultThresholds = Thresholds{Warn: 30, Challenge: 60, Block: 80}

func (th Thresholds) classify(score int) Decision {
	switch {
	case score >= th.Block:
		return DecisionBlock
	case score >= th.Challenge:
		return DecisionChallenge
	case score >= th.Warn:
		return DecisionWarn
	default:
		return DecisionAllow
	}
}

// Assessment is the fraud detector's verdict for one verification attempt.
type Assessment struct {
	Score    int
	Decision Decision
	Reasons  []string
}

const emaAlpha = 0.1

// actorProfile is the per-actor behavioral baseline the EMA-based strategies
// compare a new attempt against, updated after every scored attempt.
type actorProfile struct {
	mu                sync.Mutex
	lastAttempt       time.Time
	lastLocation      *models.GeoPoint
	intervalEMAMs     float64
	intervalInit      bool
	deviceFP          string
	deviceChurnEMA    float64
	amountMeanEMA     float64
	amountVarEMA      float64
	amountInit        bool
	hourMeanEMA       float64
	hourVarEMA        float64
	hourInit          bool
}

// Config tunes the detector's strategies (spec.md §4.5, §9 open question 1).
type Config struct {
	Thresholds Thresholds

	// EnableTimeOfDay gates strategy 6. Disabled by default: the source
	// disabled it pending per-user timezone support (spec.md §4.5, §9).
	EnableTimeOfDay bool

	// ImpossibleTravelSpeedKmh is the speed above which two consecutive
	// locations are considered an impossible-travel anomaly.
	ImpossibleTravelSpeedKmh float64

	// VelocityWindow and VelocityMaxAttempts bound strategy 1.
	VelocityWindow       time.Duration
	VelocityMaxAttempts  int
}

// DefaultConfig matches spec.md §4.5's defaults plus the disabled
// time-of-day strategy.
var DefaultConfig = Config{
	Thresholds:               DefaultThresholds,
	EnableTimeOfDay:          false,
	ImpossibleTravelSpeedKmh: 900, // roughly commercial-flight speed
	VelocityWindow:           time.Hour,
	VelocityMaxAttempts:      5,
}

// Detector scores verification attempts and maintains per-actor history and
// behavioral baselines needed by the EMA-based strategies.
type Detector struct {
	cfg       Config
	blacklist *Blacklist

	mu       sync.Mutex
	history  map[string][]models.AttemptRecord
	profiles map[string]*actorProfile
}

// NewDetector creates a Detector with cfg, consulting blacklist for the IP
// reputation strategy (a nil blacklist disables that strategy).
func NewDetector(cfg Config, blacklist *Blacklist) *Detector {
	return &Detector{
		cfg:       cfg,
		blacklist: blacklist,
		history:   make(map[string][]models.AttemptRecord),
		profiles:  make(map[string]*actorProfile),
	}
}

// Score runs all seven strategies against attempt, given the actor's
// existing history, and returns the combined Assessment. Score also records
// attempt into history and updates the actor's behavioral baseline — callers
// invoke Score exactly once per attempt, at admission time.
func (d *Detector) Score(attempt models.AttemptRecord) Assessment {
	d.mu.Lock()
	history := append([]models.AttemptRecord(nil), d.history[attempt.ActorID]...)
	profile, ok := d.profiles[attempt.ActorID]
	if !ok {
		profile = &actorProfile{}
		d.profiles[attempt.ActorID] = profile
	}
	d.mu.Unlock()

	total := 0
	var reasons []string

	if s, r := d.velocity(history, attempt); s > 0 {
		total += s
		reasons = append(reasons, r...)
	}
	if s, r := d.geolocationAnomaly(profile, attempt); s > 0 {
		total += s
		reasons = append(reasons, r...)
	}
	if s, r := d.deviceChurn(profile, attempt); s > 0 {
		total += s
		reasons = append(reasons, r...)
	}
	if s, r := d.behavioralDeviation(profile, attempt); s > 0 {
		total += s
		reasons = append(reasons, r...)
	}
	if s, r := d.ipReputation(attempt); s > 0 {
		total += s
		reasons = append(reasons, r...)
	}
	if d.cfg.EnableTimeOfDay {
		if s, r := d.timeOfDayDeviation(profile, attempt); s > 0 {
			total += s
			reasons = append(reasons, r...)
		}
	}
	if s, r := d.amountAnomaly(profile, attempt); s > 0 {
		total += s
		reasons = append(reasons, r...)
	}

	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	d.record(attempt, profile)

	return Assessment{
		Score:    total,
		Decision: d.cfg.Thresholds.classify(total),
		Reasons:  reasons,
	}
}

// record appends attempt to the bounded history and advances the actor's
// EMA baselines. Called once per Score invocation, after scoring so that an
// attempt is never compared against itself.
func (d *Detector) record(attempt models.AttemptRecord, profile *actorProfile) {
	d.mu.Lock()
	h := append(d.history[attempt.ActorID], attempt)
	cutoff := attempt.Timestamp.Add(-models.DefaultAttemptRetention)
	i := 0
	for i < len(h) && h[i].Timestamp.Before(cutoff) {
		i++
	}
	d.history[attempt.ActorID] = h[i:]
	d.mu.Unlock()

	profile.mu.Lock()
	defer profile.mu.Unlock()

	if !profile.lastAttempt.IsZero() {
		interval := attempt.Timestamp.Sub(profile.lastAttempt).Seconds() * 1000
		if !profile.intervalInit {
			profile.intervalEMAMs = interval
			profile.intervalInit = true
		} else {
			profile.intervalEMAMs = emaAlpha*interval + (1-emaAlpha)*profile.intervalEMAMs
		}
	}
	profile.lastAttempt = attempt.Timestamp
	if attempt.Location != nil {
		profile.lastLocation = attempt.Location
	}

	churn := 0.0
	if profile.deviceFP != "" && profile.deviceFP != attempt.DeviceFingerprint {
		churn = 1.0
	}
	profile.deviceChurnEMA = emaAlpha*churn + (1-emaAlpha)*profile.deviceChurnEMA
	profile.deviceFP = attempt.DeviceFingerprint

	updateEMAMoments(&profile.amountMeanEMA, &profile.amountVarEMA, &profile.amountInit, attempt.Amount)

	hour := float64((attempt.Timestamp.Unix() / 3600) % 24)
	updateEMAMoments(&profile.hourMeanEMA, &profile.hourVarEMA, &profile.hourInit, hour)
}

// updateEMAMoments advances an exponential moving mean and variance with a
// new sample x (Welford-style EMA variant used throughout the detector for
// every "distance from baseline" strategy).
func updateEMAMoments(mean, variance *float64, init *bool, x float64) {
	if !*init {
		*mean = x
		*variance = 0
		*init = true
		return
	}
	delta := x - *mean
	*mean += emaAlpha * delta
	*variance = (1-emaAlpha)*(*variance+emaAlpha*delta*delta)
}

// 1. Velocity: count of attempts for this actor in the rolling window.
func (d *Detector) velocity(history []models.AttemptRecord, attempt models.AttemptRecord) (int, []string) {
	cutoff := attempt.Timestamp.Add(-d.cfg.VelocityWindow)
	count := 0
	for _, a := range history {
		if a.Timestamp.After(cutoff) {
			count++
		}
	}
	if count < d.cfg.VelocityMaxAttempts {
		return 0, nil
	}
	over := count - d.cfg.VelocityMaxAttempts + 1
	score := 10 + 5*over
	if score > 40 {
		score = 40
	}
	return score, []string{"velocity_exceeded"}
}

// 2. Geolocation anomaly: impossible travel between consecutive samples.
func (d *Detector) geolocationAnomaly(profile *actorProfile, attempt models.AttemptRecord) (int, []string) {
	profile.mu.Lock()
	prev := profile.lastLocation
	prevTime := profile.lastAttempt
	profile.mu.Unlock()

	if prev == nil || attempt.Location == nil || prevTime.IsZero() {
		return 0, nil
	}
	elapsedHours := attempt.Timestamp.Sub(prevTime).Hours()
	if elapsedHours <= 0 {
		return 0, nil
	}
	dist := haversineKm(*prev, *attempt.Location)
	speed := dist / elapsedHours
	if speed > d.cfg.ImpossibleTravelSpeedKmh {
		return 25, []string{"impossible_travel"}
	}
	return 0, nil
}

// haversineKm returns the great-circle distance between two points in km.
func haversineKm(a, b models.GeoPoint) float64 {
	const earthRadiusKm = 6371.0
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// 3. Device fingerprint churn: high recent change rate for this user.
func (d *Detector) deviceChurn(profile *actorProfile, attempt models.AttemptRecord) (int, []string) {
	profile.mu.Lock()
	churn := profile.deviceChurnEMA
	known := profile.deviceFP
	profile.mu.Unlock()

	if known == "" {
		return 0, nil
	}
	if attempt.DeviceFingerprint != known && churn > 0.3 {
		return 15, []string{"device_fingerprint_churn"}
	}
	return 0, nil
}

// 4. Behavioral profile deviation: timing distance from the EMA baseline.
func (d *Detector) behavioralDeviation(profile *actorProfile, attempt models.AttemptRecord) (int, []string) {
	profile.mu.Lock()
	baseline := profile.intervalEMAMs
	init := profile.intervalInit
	lastAttempt := profile.lastAttempt
	profile.mu.Unlock()

	if !init || lastAttempt.IsZero() || baseline <= 0 {
		return 0, nil
	}
	interval := attempt.Timestamp.Sub(lastAttempt).Seconds() * 1000
	deviation := math.Abs(interval-baseline) / baseline
	if deviation > 3.0 {
		return 15, []string{"behavioral_deviation"}
	}
	return 0, nil
}

// 5. IP reputation: blacklist membership.
func (d *Detector) ipReputation(attempt models.AttemptRecord) (int, []string) {
	if d.blacklist == nil || attempt.IP == "" {
		return 0, nil
	}
	if d.blacklist.Contains(attempt.IP, attempt.Timestamp) {
		return 35, []string{"ip_blacklisted"}
	}
	return 0, nil
}

// 6. Time-of-day deviation: disabled by default (spec.md §9 open question
// 1 — pending per-user timezone support).
func (d *Detector) timeOfDayDeviation(profile *actorProfile, attempt models.AttemptRecord) (int, []string) {
	profile.mu.Lock()
	mean, variance, init := profile.hourMeanEMA, profile.hourVarEMA, profile.hourInit
	profile.mu.Unlock()

	if !init || variance <= 0 {
		return 0, nil
	}
	hour := float64((attempt.Timestamp.Unix() / 3600) % 24)
	std := math.Sqrt(variance)
	z := math.Abs(hour-mean) / std
	if z > 3.0 {
		return 10, []string{"time_of_day_deviation"}
	}
	return 0, nil
}

// 7. Transaction amount anomaly: z-score of amount over user history.
func (d *Detector) amountAnomaly(profile *actorProfile, attempt models.AttemptRecord) (int, []string) {
	profile.mu.Lock()
	mean, variance, init := profile.amountMeanEMA, profile.amountVarEMA, profile.amountInit
	profile.mu.Unlock()

	if !init || variance <= 0 {
		return 0, nil
	}
	std := math.Sqrt(variance)
	if std == 0 {
		return 0, nil
	}
	z := math.Abs(attempt.Amount-mean) / std
	if z > 3.0 {
		score := int(math.Min(20.0, z*5.0))
		return score, []string{"amount_anomaly"}
	}
	return 0, nil
}
