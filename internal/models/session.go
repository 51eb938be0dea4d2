package models

import "time"

// Principal is an anonymous identity authorizing reporter writes. Cases are
// keyed to a principal so store access rules can hold even for anonymous
// submissions.
type Principal struct {
	ID         string    `db:"id" json:"id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// Session is the explicit reporter session state held in Redis. It replaces
// what the reporter UI used to keep in ambient globals: the policy-acceptance
// flag, the bound principal and the last-submitted fingerprint.
type Session struct {
	ID               string     `json:"id"`
	PrincipalID      string     `json:"principal_id,omitempty"`
	PolicyAcceptedAt *time.Time `json:"policy_accepted_at,omitempty"`
	LastFingerprint  string     `json:"last_fingerprint,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// PolicyAccepted reports whether the reporting policy was acknowledged.
func (s *Session) PolicyAccepted() bool {
	return s != nil && s.PolicyAcceptedAt != nil
}
