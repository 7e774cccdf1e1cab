package domain

import (
	"encoding/json"
	"time"
)

// Security event types emitted by the auth code paths.
const (
	EventLoginSuccess       = "login_success"
	EventLoginFailure       = "login_failure"
	EventAccountLocked      = "account_locked"
	EventTokenRefreshed     = "token_refreshed"
	EventRefreshReuse       = "refresh_reuse_detected"
	EventSessionEvicted     = "session_evicted"
	EventSessionTerminated  = "session_terminated"
	EventMagicLinkRequested = "magic_link_requested"
	EventMagicLinkUsed      = "magic_link_used"
	EventSuspiciousActivity = "suspicious_activity"
)

// SecurityEvent is one security-relevant occurrence in the auth subsystem.
// Events flow over Kafka and OTel logs, independent of the primary store, so
// an incident trail survives a database outage.
type SecurityEvent struct {
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	IP        string          `json:"ip,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
