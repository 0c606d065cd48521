// Package verify implements the verification orchestrator (spec.md §4.9,
// component C9): create_session and submit_factor, driving the
// VerificationSession state machine through fraud admission, rate
// limiting, per-factor comparison via C2/C4, and proof emission via C6.
// Grounded on the teacher's session-scoped coordinator pattern (one struct
// owning mutually exclusive access to a single in-flight unit of work),
// generalized from a one-shot CLI run to a long-lived, concurrently
// addressed session table.
package verify

import (
	"context"
	"sync"
	"time"

	"github.com/rawblock/authcore/internal/alerts"
	"github.com/rawblock/authcore/internal/compare"
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/internal/factors"
	"github.com/rawblock/authcore/internal/fraud"
	"github.com/rawblock/authcore/internal/obslog"
	"github.com/rawblock/authcore/internal/proof"
	"github.com/rawblock/authcore/internal/ratelimit"
	"github.com/rawblock/authcore/pkg/models"
)

// Store is the read side of the persistence contract C9 needs: looking up
// an existing EnrollmentRecord. Shared shape with enroll.Store.
type Store interface {
	Load(ctx context.Context, userID string) (*models.EnrollmentRecord, error)
}

// SessionPolicy governs required-factor selection (spec.md §4.9 step 4:
// "policy may downgrade for low-risk amounts or upgrade if fraud score is
// elevated").
type SessionPolicy struct {
	LowRiskAmountThreshold float64
	LowRiskFactorCount     int
}

// DefaultSessionPolicy downgrades to a single required factor for amounts
// under 10 currency units when the fraud assessment is a clean ALLOW.
var DefaultSessionPolicy = SessionPolicy{LowRiskAmountThreshold: 10, LowRiskFactorCount: 1}

const defaultCleanupInterval = 10 * time.Minute

// CreateSessionRequest carries the admission-time context for a new
// verification session.
type CreateSessionRequest struct {
	UserID            string
	MerchantID        string
	Amount            float64
	Currency          string
	DeviceFingerprint string
	IP                string
	Location          *models.GeoPoint
}

// SubmitResult is returned by SubmitFactor: either a terminal decision
// (Decided true) or a continuation (Decided false, session still
// AWAITING_FACTOR).
type SubmitResult struct {
	Decided bool
	Success bool
	Proof   *models.ProofEnvelope
}

// Orchestrator owns the live verification session table and all three
// dependent components (fraud detector, rate limiter, enrollment store).
type Orchestrator struct {
	detector   *fraud.Detector
	userLimit  *ratelimit.Limiter
	merchLimit *ratelimit.Limiter
	local      Store
	durable    Store
	alertMgr   *alerts.Manager
	policy     SessionPolicy
	sessionTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*models.VerificationSession
	stop     chan struct{}

	enrollmentDigests digestCache

	log *obslog.Logger
}

// digestCache holds each live session's enrolled digest set, keyed by
// session id, separately from the VerificationSession itself — a session
// only ever carries what the caller submitted (SubmittedDigests), never
// the stored enrollment it is being checked against.
type digestCache struct {
	mu    sync.Mutex
	byID  map[string]map[models.FactorKind]models.FactorDigest
}

func (c *digestCache) store(id string, digests map[models.FactorKind]models.FactorDigest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byID == nil {
		c.byID = make(map[string]map[models.FactorKind]models.FactorDigest)
	}
	c.byID[id] = digests
}

func (c *digestCache) load(id string) (map[models.FactorKind]models.FactorDigest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.byID[id]
	return d, ok
}

func (c *digestCache) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
}

// NewOrchestrator constructs an Orchestrator and starts its expired-session
// cleanup loop.
func NewOrchestrator(detector *fraud.Detector, userLimit, merchLimit *ratelimit.Limiter, local, durable Store, alertMgr *alerts.Manager) *Orchestrator {
	o := &Orchestrator{
		detector:   detector,
		userLimit:  userLimit,
		merchLimit: merchLimit,
		local:      local,
		durable:    durable,
		alertMgr:   alertMgr,
		policy:     DefaultSessionPolicy,
		sessionTTL: models.DefaultSessionTTL,
		sessions:   make(map[string]*models.VerificationSession),
		stop:       make(chan struct{}),
		log:        obslog.New("verify"),
	}
	go o.cleanupLoop()
	return o
}

// Close stops the background cleanup loop.
func (o *Orchestrator) Close() { close(o.stop) }

// CreateSession runs spec.md §4.9's create_session algorithm.
func (o *Orchestrator) CreateSession(ctx context.Context, sessionID string, req CreateSessionRequest, now time.Time) (*models.VerificationSession, error) {
	assessment := o.detector.Score(models.AttemptRecord{
		ActorID:           req.UserID,
		Timestamp:         now,
		Location:          req.Location,
		DeviceFingerprint: req.DeviceFingerprint,
		IP:                req.IP,
		Amount:            req.Amount,
		Outcome:           models.OutcomeSuccess,
	})
	if assessment.Decision == fraud.DecisionBlock {
		if o.alertMgr != nil {
			o.alertMgr.SendAlert(req.MerchantID, alerts.PriorityCritical, "verification_blocked", map[string]string{
				"user_id": req.UserID,
				"reasons": joinReasons(assessment.Reasons),
			})
		}
		return nil, errs.New(errs.Auth, "verification blocked by fraud assessment")
	}

	if o.userLimit != nil {
		if err := o.userLimit.Allow(req.UserID, now); err != nil {
			return nil, err
		}
	}
	if o.merchLimit != nil && req.MerchantID != "" {
		if err := o.merchLimit.Allow(req.MerchantID, now); err != nil {
			return nil, err
		}
	}

	rec, err := o.loadEnrollment(ctx, req.UserID)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return nil, errs.New(errs.NotFound, "user is not enrolled")
		}
		return nil, err
	}
	if !rec.ExpiresAt.IsZero() && now.After(rec.ExpiresAt) {
		return nil, errs.New(errs.NotFound, "enrollment has expired")
	}

	required := o.chooseRequiredFactors(rec, req.Amount, assessment)

	session := models.NewVerificationSession(sessionID, req.UserID, req.MerchantID, req.Amount, req.Currency, required, o.sessionTTL, now)
	session.DeviceFingerprint = req.DeviceFingerprint
	session.IP = req.IP
	session.State = models.StateAwaitingFactor

	elevated := assessment.Decision == fraud.DecisionChallenge || assessment.Decision == fraud.DecisionWarn
	if elevated && o.alertMgr != nil && !session.MerchantAlertSent {
		o.alertMgr.SendAlert(req.MerchantID, alerts.PriorityMedium, "verification_elevated_risk", map[string]string{
			"user_id":  req.UserID,
			"decision": string(assessment.Decision),
		})
		session.MerchantAlertSent = true
	}

	o.mu.Lock()
	o.sessions[sessionID] = session
	o.mu.Unlock()

	o.enrollmentDigests.store(sessionID, rec.Digests)
	return session, nil
}

// chooseRequiredFactors applies SessionPolicy: by default every enrolled
// factor is required; low-risk amounts on a clean assessment may downgrade
// to a smaller subset (spec.md §4.9 step 4).
func (o *Orchestrator) chooseRequiredFactors(rec *models.EnrollmentRecord, amount float64, assessment fraud.Assessment) []models.FactorKind {
	all := rec.FactorKinds()
	if assessment.Decision == fraud.DecisionAllow && amount < o.policy.LowRiskAmountThreshold && o.policy.LowRiskFactorCount > 0 && o.policy.LowRiskFactorCount < len(all) {
		return append([]models.FactorKind(nil), all[:o.policy.LowRiskFactorCount]...)
	}
	return all
}

// SubmitFactor runs spec.md §4.9's submit_factor algorithm. rawInput is the
// factor-specific typed input (e.g. factors.PINInput) — never a
// pre-computed digest, since fuzzy factors (IMAGE_TAP, BALANCE) must be
// compared against a candidate set rebuilt at verification time.
func (o *Orchestrator) SubmitFactor(sessionID string, kind models.FactorKind, rawInput any, now time.Time) (*SubmitResult, error) {
	o.mu.Lock()
	session, ok := o.sessions[sessionID]
	o.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.NotFound, "no such verification session")
	}

	if session.Expired(now) {
		o.transitionTerminal(sessionID, session, models.StateExpired)
		return nil, errs.New(errs.Validation, "verification session expired")
	}
	if session.State != models.StateAwaitingFactor {
		return nil, errs.New(errs.Validation, "session is not awaiting a factor submission")
	}
	if session.CompletedFactors[kind] || !session.Requires(kind) {
		return nil, errs.New(errs.Validation, "factor not required by this session")
	}

	matched, submitted := o.compareFactor(sessionID, kind, rawInput)

	if !matched {
		session.AttemptCount++
		if session.AttemptCount >= session.MaxAttempts {
			o.transitionTerminal(sessionID, session, models.StateDecidedFailure)
			return &SubmitResult{Decided: true, Success: false}, nil
		}
		return &SubmitResult{Decided: false}, nil
	}

	session.CompletedFactors[kind] = true
	session.SubmittedDigests[kind] = submitted
	if !session.Complete() {
		return &SubmitResult{Decided: false}, nil
	}

	session.State = models.StateVerifying
	envelope := proof.Emit(session.UserID, session.SessionID, session.SubmittedDigests, now)
	o.transitionTerminal(sessionID, session, models.StateDecidedSuccess)
	return &SubmitResult{Decided: true, Success: true, Proof: &envelope}, nil
}

// compareFactor processes rawInput through C2 and compares it against the
// stored enrollment digest via C4, using the fuzzy any-of-candidate path
// for IMAGE_TAP/BALANCE and exact comparison otherwise. On a match it also
// returns the digest to record as this session's submission for kind: the
// exact path returns what C2 actually derived from rawInput, and the fuzzy
// path returns the stored digest the input was confirmed against, since a
// fuzzy match has no single canonical "submitted" encoding of its own.
func (o *Orchestrator) compareFactor(sessionID string, kind models.FactorKind, rawInput any) (bool, models.FactorDigest) {
	digests, ok := o.enrollmentDigests.load(sessionID)
	if !ok {
		return false, models.FactorDigest{}
	}
	stored, ok := digests[kind]
	if !ok {
		return false, models.FactorDigest{}
	}

	storedArr := [models.DigestSize]byte(stored)

	if compare.IsFuzzy(kind) {
		candidates, err := fuzzyCandidates(kind, rawInput)
		if err != nil {
			return false, models.FactorDigest{}
		}
		if !compare.AnyMatch(&storedArr, candidates) {
			return false, models.FactorDigest{}
		}
		return true, stored
	}

	submitted, err := factors.Process(kind, rawInput)
	if err != nil {
		return false, models.FactorDigest{}
	}
	submittedArr := [models.DigestSize]byte(submitted)
	if !compare.Exact(&submittedArr, &storedArr) {
		return false, models.FactorDigest{}
	}
	return true, submitted
}

func fuzzyCandidates(kind models.FactorKind, rawInput any) ([][models.DigestSize]byte, error) {
	switch kind {
	case models.FactorImageTap:
		in, ok := rawInput.(factors.ImageTapInput)
		if !ok {
			return nil, errs.New(errs.Validation, "expected ImageTapInput")
		}
		return factors.ImageTapCandidateDigests(in), nil
	case models.FactorBalance:
		in, ok := rawInput.(factors.BalanceInput)
		if !ok {
			return nil, errs.New(errs.Validation, "expected BalanceInput")
		}
		return factors.BalanceCandidateDigests(in, defaultBalanceDelta), nil
	default:
		return nil, errs.New(errs.Internal, "fuzzyCandidates called for non-fuzzy kind")
	}
}

// defaultBalanceDelta is the per-axis perturbation step used to build the
// BALANCE candidate set (spec.md §9 open question 3: not numerically fixed
// in the source; treated as configurable policy).
const defaultBalanceDelta = 0.05

// transitionTerminal moves session into a terminal state and removes it
// from the live table (spec.md §4.9: "Session is destroyed after
// decision").
func (o *Orchestrator) transitionTerminal(sessionID string, session *models.VerificationSession, state models.SessionState) {
	session.State = state
	o.mu.Lock()
	delete(o.sessions, sessionID)
	o.mu.Unlock()
	o.enrollmentDigests.delete(sessionID)
}

func (o *Orchestrator) loadEnrollment(ctx context.Context, userID string) (*models.EnrollmentRecord, error) {
	rec, err := o.local.Load(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if errs.KindOf(err) != errs.NotFound {
		o.log.Warn("local load failed for user %s: %v", userID, err)
	}
	return o.durable.Load(ctx, userID)
}

func (o *Orchestrator) cleanupLoop() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			now := time.Now()
			o.mu.Lock()
			for id, s := range o.sessions {
				if s.Expired(now) {
					delete(o.sessions, id)
				}
			}
			o.mu.Unlock()
		}
	}
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += ";"
		}
		out += r
	}
	return out
}
