package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/authcore/internal/enroll"
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/internal/factors"
	"github.com/rawblock/authcore/internal/verify"
	"github.com/rawblock/authcore/pkg/models"
)

// factorWire is the wire shape of one submitted factor: a name naming its
// FactorKind, plus a kind-specific payload decoded by decodeFactorInput.
type factorWire struct {
	Kind  string          `json:"kind"`
	Input json.RawMessage `json:"input"`
}

// decodeFactorInput unmarshals raw into the typed input factors.Process
// expects for kind. Mirrors the registry dispatch in internal/factors, one
// case per factor kind.
func decodeFactorInput(kind models.FactorKind, raw json.RawMessage) (any, error) {
	var err error
	switch kind {
	case models.FactorPIN:
		var in factors.PINInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorColour, models.FactorEmoji, models.FactorWords:
		var in factors.IndexListInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorPatternNormal, models.FactorPatternMicro:
		var in factors.PatternInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorMouseDraw:
		var in factors.DrawInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorRhythmTap:
		var in factors.RhythmInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorStylusDraw:
		var in factors.StylusInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorImageTap:
		var in factors.ImageTapInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorVoice:
		var in factors.VoiceInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorBalance:
		var in factors.BalanceInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorNFC:
		var in factors.NFCInput
		err = json.Unmarshal(raw, &in)
		return in, err
	case models.FactorFace, models.FactorFingerprint:
		var in factors.AttestationInput
		err = json.Unmarshal(raw, &in)
		return in, err
	default:
		return nil, errs.New(errs.Validation, "unknown factor kind")
	}
}

func decodeFactorWires(wires []factorWire) ([]enroll.FactorSubmission, error) {
	out := make([]enroll.FactorSubmission, 0, len(wires))
	for _, w := range wires {
		kind, ok := models.ParseFactorKind(w.Kind)
		if !ok {
			return nil, errs.Validationf("kind", "unknown factor kind %q", w.Kind)
		}
		input, err := decodeFactorInput(kind, w.Input)
		if err != nil {
			return nil, errs.Wrap(errs.Validation, err, "invalid input for factor "+w.Kind)
		}
		out = append(out, enroll.FactorSubmission{Kind: kind, Input: input})
	}
	return out, nil
}

// writeError maps the internal error taxonomy to an HTTP response. Auth
// errors, including a C9 fraud BLOCK, collapse to the same opaque 401 body
// regardless of the reason; a decided verification failure gets its own
// opaque body in handleSubmitFactor. Validation and Conflict errors carry
// their message.
func writeError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	switch kind {
	case errs.Validation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errs.Auth:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
	case errs.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errs.Conflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errs.RateLimited:
		var retryMs int64
		if e, ok := err.(*errs.Error); ok {
			retryMs = e.RetryAfter.Milliseconds()
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "retry_after_ms": retryMs})
	case errs.BreakerOpen, errs.Unavailable, errs.Timeout:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	case errs.PartiallyPersisted:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type enrollRequestWire struct {
	Alias             string       `json:"alias"`
	Factors           []factorWire `json:"factors"`
	Consent           models.Consent `json:"consent"`
	AttestationKind   string       `json:"attestation_kind"`
	DeviceFingerprint string       `json:"device_fingerprint"`
}

func (h *APIHandler) handleEnroll(c *gin.Context) {
	var req enrollRequestWire
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	submissions, err := decodeFactorWires(req.Factors)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.enroll.Enroll(c.Request.Context(), enroll.EnrollRequest{
		Alias:             req.Alias,
		Factors:           submissions,
		Consent:           req.Consent,
		AttestationKind:   req.AttestationKind,
		DeviceFingerprint: req.DeviceFingerprint,
		IP:                c.ClientIP(),
	}, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user_id":    res.UserID,
		"alias":      res.Alias,
		"expires_at": res.ExpiresAt,
	})
}

func (h *APIHandler) handleRetrieveFactors(c *gin.Context) {
	userID := c.Param("user_id")
	view, err := h.enroll.Export(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	kinds := make([]string, len(view.Kinds))
	for i, k := range view.Kinds {
		kinds[i] = k.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    view.UserID,
		"alias":      view.Alias,
		"kinds":      kinds,
		"created_at": view.CreatedAt,
		"expires_at": view.ExpiresAt,
	})
}

func (h *APIHandler) handleUpdateFactors(c *gin.Context) {
	userID := c.Param("user_id")
	var req enrollRequestWire
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	submissions, err := decodeFactorWires(req.Factors)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.enroll.Update(c.Request.Context(), userID, enroll.EnrollRequest{
		Alias:             req.Alias,
		Factors:           submissions,
		Consent:           req.Consent,
		AttestationKind:   req.AttestationKind,
		DeviceFingerprint: req.DeviceFingerprint,
		IP:                c.ClientIP(),
	}, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    res.UserID,
		"alias":      res.Alias,
		"expires_at": res.ExpiresAt,
	})
}

func (h *APIHandler) handleDeleteFactors(c *gin.Context) {
	userID := c.Param("user_id")
	if err := h.enroll.Delete(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createSessionWire struct {
	UserID            string  `json:"user_id"`
	MerchantID        string  `json:"merchant_id"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	DeviceFingerprint string  `json:"device_fingerprint"`
}

func (h *APIHandler) handleCreateSession(c *gin.Context) {
	var req createSessionWire
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sessionID := uuid.NewString()
	session, err := h.verify.CreateSession(c.Request.Context(), sessionID, verify.CreateSessionRequest{
		UserID:            req.UserID,
		MerchantID:        req.MerchantID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		DeviceFingerprint: req.DeviceFingerprint,
		IP:                c.ClientIP(),
	}, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}

	required := make([]string, len(session.RequiredFactors))
	for i, k := range session.RequiredFactors {
		required[i] = k.String()
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id":       session.SessionID,
		"state":            session.State.String(),
		"required_factors": required,
		"expires_at":       session.ExpiresAt,
	})
}

type submitFactorWire struct {
	Kind  string          `json:"kind"`
	Input json.RawMessage `json:"input"`
}

func (h *APIHandler) handleSubmitFactor(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req submitFactorWire
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	kind, ok := models.ParseFactorKind(req.Kind)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown factor kind"})
		return
	}
	input, err := decodeFactorInput(kind, req.Input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input for submitted factor"})
		return
	}

	result, err := h.verify.SubmitFactor(sessionID, kind, input, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	if !result.Decided {
		c.JSON(http.StatusOK, gin.H{"decided": false})
		return
	}
	if !result.Success {
		// Opaque: the caller never learns which factor failed or why,
		// only that the session has been decided a failure.
		c.JSON(http.StatusUnauthorized, gin.H{"decided": true, "success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"decided": true,
		"success": true,
		"proof":   result.Proof,
	})
}
