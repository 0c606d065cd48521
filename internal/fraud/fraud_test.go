package fraud

import (
	"testing"
	"time"

	"github.com/rawblock/authcore/pkg/models"
)

func attemptAt(actor string, t time.Time) models.AttemptRecord {
	return models.AttemptRecord{
		ActorID:           actor,
		Timestamp:         t,
		DeviceFingerprint: "device-a",
		IP:                "203.0.113.1",
		Amount:            50,
		Outcome:           models.OutcomeSuccess,
	}
}

func TestCleanActorScoresLow(t *testing.T) {
	d := NewDetector(DefaultConfig, NewBlacklist())
	now := time.Unix(1_700_000_000, 0)
	a := d.Score(attemptAt("user1", now))
	if a.Decision != DecisionAllow {
		t.Fatalf("expected ALLOW for a single clean attempt, got %v (score %d)", a.Decision, a.Score)
	}
}

func TestVelocityStrategyEscalates(t *testing.T) {
	d := NewDetector(DefaultConfig, NewBlacklist())
	now := time.Unix(1_700_000_000, 0)
	var last Assessment
	for i := 0; i < 8; i++ {
		last = d.Score(attemptAt("user1", now.Add(time.Duration(i)*time.Minute)))
	}
	if last.Score == 0 {
		t.Fatalf("expected a nonzero score once velocity policy is exceeded")
	}
	found := false
	for _, r := range last.Reasons {
		if r == "velocity_exceeded" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected velocity_exceeded among reasons, got %v", last.Reasons)
	}
}

func TestBlacklistedIPEscalatesToAtLeastWarn(t *testing.T) {
	bl := NewBlacklist()
	now := time.Unix(1_700_000_000, 0)
	bl.Add("198.51.100.7", time.Hour, now)

	d := NewDetector(DefaultConfig, bl)
	attempt := attemptAt("user1", now)
	attempt.IP = "198.51.100.7"

	a := d.Score(attempt)
	if a.Score < DefaultThresholds.Warn {
		t.Fatalf("expected a blacklisted IP to push score at least into WARN, got %d", a.Score)
	}
}

func TestImpossibleTravelFlagged(t *testing.T) {
	d := NewDetector(DefaultConfig, NewBlacklist())
	now := time.Unix(1_700_000_000, 0)

	first := attemptAt("user1", now)
	first.Location = &models.GeoPoint{Lat: 51.5074, Lon: -0.1278} // London
	d.Score(first)

	second := attemptAt("user1", now.Add(5*time.Minute))
	second.Location = &models.GeoPoint{Lat: 35.6762, Lon: 139.6503} // Tokyo, 5 min later
	a := d.Score(second)

	found := false
	for _, r := range a.Reasons {
		if r == "impossible_travel" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected impossible_travel among reasons, got %v", a.Reasons)
	}
}

func TestTimeOfDayDisabledByDefault(t *testing.T) {
	if DefaultConfig.EnableTimeOfDay {
		t.Fatalf("expected time-of-day strategy disabled by default")
	}
}

func TestThresholdClassification(t *testing.T) {
	th := DefaultThresholds
	cases := []struct {
		score int
		want  Decision
	}{
		{0, DecisionAllow},
		{29, DecisionAllow},
		{30, DecisionWarn},
		{59, DecisionWarn},
		{60, DecisionChallenge},
		{79, DecisionChallenge},
		{80, DecisionBlock},
		{100, DecisionBlock},
	}
	for _, c := range cases {
		if got := th.classify(c.score); got != c.want {
			t.Fatalf("classify(%d) = %v, want %v", c.score, got, c.want)
		}
	}
}
