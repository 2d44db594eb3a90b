package audit

import "time"

// Action names the certificate lifecycle fact an event records.
type Action string

const (
	ActionCertificateCreated Action = "certificate_created"
	ActionCertificateIssued  Action = "certificate_issued"
	ActionCertificateRevoked Action = "certificate_revoked"
	ActionCertificateExpired Action = "certificate_expired"
	ActionCertificateDeleted Action = "certificate_deleted"
	ActionValidationChecked  Action = "validation_checked"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	Action        Action    `json:"action"`
	CertificateID string    `json:"certificate_id,omitempty"`
	PublicNumber  string    `json:"public_number,omitempty"`
	// ActorID tracks who performed the action. It is an opaque string to
	// support whatever identification scheme the surrounding layer uses.
	ActorID string `json:"actor_id,omitempty"`
	// Reason carries the revocation reason or the validation outcome.
	Reason string `json:"reason,omitempty"`
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}
