package domain

import "time"

// AuditEntry records one drop or transform made by the security filter.
type AuditEntry struct {
	ID           string           `json:"audit_id"`
	UserID       string           `json:"user_id"`
	FragmentKind FieldKind        `json:"fragment_kind"`
	Level        SensitivityLevel `json:"sensitivity_level"`
	Decision     FilterDecision   `json:"decision"`
	Reason       string           `json:"reason"`
	HandlerID    string           `json:"handler_id,omitempty"`
	Signal       ErrorKind        `json:"signal,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}
