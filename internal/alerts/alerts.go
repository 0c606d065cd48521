// Package alerts implements the merchant alert interface (spec.md §6
// "send_alert(merchant_id, priority, reason, details) — fire-and-forget;
// failures logged, never fatal") plus webhook delivery and a bounded
// in-memory history, grounded directly on the teacher's AlertManager.
package alerts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rawblock/authcore/internal/obslog"
)

// Priority mirrors the severity bands the fraud detector (C5) already
// classifies decisions into.
type Priority string

const (
	PriorityInfo     Priority = "info"
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Alert is a structured merchant/operator notification.
type Alert struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Priority  Priority          `json:"priority"`
	MerchantID string           `json:"merchant_id"`
	Reason    string            `json:"reason"`
	Details   map[string]string `json:"details,omitempty"`
}

// Webhook is a registered delivery endpoint, filtered by minimum priority.
type Webhook struct {
	Name        string
	URL         string
	Enabled     bool
	Headers     map[string]string
	MinPriority Priority
}

// Manager handles alert emission: websocket broadcast via a callback,
// webhook delivery, and bounded in-memory history — the same three
// responsibilities as the teacher's AlertManager, reauthored for merchant
// alerts instead of transaction threat alerts.
type Manager struct {
	mu           sync.RWMutex
	webhooks     []Webhook
	recentAlerts []Alert
	maxHistory   int
	httpClient   *http.Client
	broadcast    func(Alert)
	log          *obslog.Logger
}

// NewManager creates a Manager whose alerts are broadcast via broadcastFn
// (may be nil if no live dashboard is wired).
func NewManager(broadcastFn func(Alert)) *Manager {
	return &Manager{
		maxHistory: 1000,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		broadcast:  broadcastFn,
		log:        obslog.New("alerts"),
	}
}

// RegisterWebhook adds a delivery endpoint.
func (m *Manager) RegisterWebhook(wh Webhook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, wh)
}

// SendAlert is the merchant alert interface's send_alert: fire-and-forget,
// failures logged and never returned to the caller (spec.md §6).
func (m *Manager) SendAlert(merchantID string, priority Priority, reason string, details map[string]string) {
	alert := Alert{
		ID:         generateAlertID(merchantID, reason),
		Timestamp:  time.Now(),
		Priority:   priority,
		MerchantID: merchantID,
		Reason:     reason,
		Details:    details,
	}

	m.mu.Lock()
	m.recentAlerts = append(m.recentAlerts, alert)
	if len(m.recentAlerts) > m.maxHistory {
		m.recentAlerts = m.recentAlerts[len(m.recentAlerts)-m.maxHistory:]
	}
	webhooks := append([]Webhook(nil), m.webhooks...)
	m.mu.Unlock()

	if m.broadcast != nil {
		m.broadcast(alert)
	}

	for _, wh := range webhooks {
		if !wh.Enabled || !priorityMeetsThreshold(priority, wh.MinPriority) {
			continue
		}
		go m.sendWebhook(wh, alert)
	}

	m.log.Printf("[%s] merchant=%s reason=%s", priority, merchantID, reason)
}

// RecentAlerts returns up to limit of the most recent alerts, newest first.
func (m *Manager) RecentAlerts(limit int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.recentAlerts) {
		limit = len(m.recentAlerts)
	}
	start := len(m.recentAlerts) - limit
	out := make([]Alert, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.recentAlerts[start+limit-1-i]
	}
	return out
}

func (m *Manager) sendWebhook(wh Webhook, alert Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		m.log.Warn("failed to marshal alert for %s: %v", wh.Name, err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewBuffer(payload))
	if err != nil {
		m.log.Warn("failed to build webhook request for %s: %v", wh.Name, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.log.Warn("failed to deliver webhook %s: %v", wh.Name, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		m.log.Warn("webhook %s returned status %d", wh.Name, resp.StatusCode)
	}
}

func priorityMeetsThreshold(priority, minimum Priority) bool {
	levels := map[Priority]int{PriorityInfo: 0, PriorityLow: 1, PriorityMedium: 2, PriorityHigh: 3, PriorityCritical: 4}
	return levels[priority] >= levels[minimum]
}

func generateAlertID(merchantID, reason string) string {
	return merchantID + "-" + reason + "-" + time.Now().Format("20060102150405.000000000")
}
