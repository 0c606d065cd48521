// Package shadow implements offline/shadow replay (spec.md §4.17,
// component A8): running a candidate fraud-strategy configuration against
// historical attempts without ever influencing a live decision. Adapted
// from the teacher's internal/shadow package — ShadowRunner.RunShadowAnalysis
// ran both a production and an experimental heuristic function over the
// same transaction and recorded the divergence; this generalizes the same
// "two independent scorers over one historical record, compare, report"
// shape from transaction heuristics to authentication attempts.
package shadow

import (
	"github.com/rawblock/authcore/internal/fraud"
	"github.com/rawblock/authcore/internal/obslog"
	"github.com/rawblock/authcore/pkg/models"
)

// Result captures one historical attempt's production vs. candidate
// decision, mirroring the teacher's ShadowResult (production/shadow flags
// plus a divergence flag) reshaped for fraud decisions.
type Result struct {
	ActorID            string
	ProductionDecision fraud.Decision
	CandidateDecision  fraud.Decision
	ProductionScore    int
	CandidateScore     int
	Diverged           bool
}

// DriftReport summarizes a Replay run, mirroring the teacher's
// GenerateDriftReport (total runs, divergence count, divergence rate).
type DriftReport struct {
	TotalRuns      int
	Divergences    int
	DivergenceRate float64
}

// Runner holds two independently-seeded fraud.Detector instances — one
// built from the currently-deployed Config, one from a candidate Config
// being evaluated — so replaying the same historical attempt sequence
// through both never touches the live detector any real request uses.
type Runner struct {
	production *fraud.Detector
	candidate  *fraud.Detector
	log        *obslog.Logger
}

// NewRunner builds a Runner. Both detectors share the same blacklist
// instance since IP reputation is operational state, not the thing being
// evaluated; only the scoring Config under test differs.
func NewRunner(productionCfg, candidateCfg fraud.Config, blacklist *fraud.Blacklist) *Runner {
	return &Runner{
		production: fraud.NewDetector(productionCfg, blacklist),
		candidate:  fraud.NewDetector(candidateCfg, blacklist),
		log:        obslog.New("shadow"),
	}
}

// Replay scores every attempt, in order, through both detectors. Attempts
// must be supplied in chronological order — the velocity and EMA-based
// strategies are history-dependent, so replaying out of order would
// produce scores that never occurred in production.
func (r *Runner) Replay(attempts []models.AttemptRecord) []Result {
	results := make([]Result, 0, len(attempts))
	for _, a := range attempts {
		prod := r.production.Score(a)
		cand := r.candidate.Score(a)
		diverged := prod.Decision != cand.Decision
		if diverged {
			r.log.Printf("divergence actor=%s production=%s(%d) candidate=%s(%d)",
				a.ActorID, prod.Decision, prod.Score, cand.Decision, cand.Score)
		}
		results = append(results, Result{
			ActorID:            a.ActorID,
			ProductionDecision: prod.Decision,
			CandidateDecision:  cand.Decision,
			ProductionScore:    prod.Score,
			CandidateScore:     cand.Score,
			Diverged:           diverged,
		})
	}
	return results
}

// Report computes a DriftReport over a completed Replay's results.
func Report(results []Result) DriftReport {
	total := len(results)
	divergences := 0
	for _, r := range results {
		if r.Diverged {
			divergences++
		}
	}
	rate := 0.0
	if total > 0 {
		rate = float64(divergences) / float64(total)
	}
	return DriftReport{TotalRuns: total, Divergences: divergences, DivergenceRate: rate}
}
