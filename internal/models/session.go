package models

import "time"

// ScopeAll marks a session that receives notifications for every tenant.
const ScopeAll = "all"

// SessionPreferences filters what a console receives. DisabledTypes and the
// minimum level are ignored for urgent notifications.
type SessionPreferences struct {
	DisabledTypes []NotificationType `json:"disabledTypes,omitempty"`
	MinimumLevel  NotificationLevel  `json:"minimumLevel,omitempty"`
}

// TypeDisabled reports whether the session opted out of a notification type.
func (p SessionPreferences) TypeDisabled(t NotificationType) bool {
	for _, dt := range p.DisabledTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// LevelAllowed reports whether a level passes the session's minimum-level filter.
func (p SessionPreferences) LevelAllowed(l NotificationLevel) bool {
	if p.MinimumLevel == "" {
		return true
	}
	return l.Rank() >= p.MinimumLevel.Rank()
}

// PushMessage is the envelope written to a session's live channel.
type PushMessage struct {
	Type      string       `json:"type"`
	Data      Notification `json:"data"`
	SessionID string       `json:"sessionId"`
	Timestamp time.Time    `json:"timestamp"`
}

// AdminSession is one connected administrator console. The push channel is
// buffered; a send that cannot proceed counts as a broken channel and the
// session is removed lazily on that first failure.
type AdminSession struct {
	ID           string
	AdminID      string
	TenantScope  string
	Push         chan PushMessage
	Preferences  SessionPreferences
	LastActivity time.Time
}

// Eligible reports whether the session should receive the notification.
// Urgent notifications bypass scope and preference filtering entirely.
func (s *AdminSession) Eligible(n Notification) bool {
	if n.Priority == NotifPriorityUrgent {
		return true
	}
	if s.TenantScope != ScopeAll && n.TenantSlug != "" && s.TenantScope != n.TenantSlug {
		return false
	}
	if s.Preferences.TypeDisabled(n.Type) {
		return false
	}
	return s.Preferences.LevelAllowed(n.Level)
}
