package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "attesta/pkg/domain-errors"
)

// Status tracks where a certificate sits in its lifecycle. Transitions only
// move forward: PENDING -> ISSUED -> {EXPIRED, REVOKED}. EXPIRED is reached
// only by time elapsing past ValidUntil, never by direct command.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusIssued  Status = "ISSUED"
	StatusExpired Status = "EXPIRED"
	StatusRevoked Status = "REVOKED"
)

// allowedTransitions is the single source of truth for lifecycle edges.
// Stores consult it inside their compare-and-swap so no caller can push a
// certificate backwards.
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusIssued},
	StatusIssued:  {StatusExpired, StatusRevoked},
}

// CanTransition reports whether the edge from -> to is an allowed lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusIssued, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// Category is the closed set of training categories a certificate can attest.
type Category string

const (
	CategoryElectricalSafety Category = "electrical-safety"
	CategoryFlammables       Category = "flammables"
	CategoryFallProtection   Category = "fall-protection"
	CategoryFireBrigade      Category = "fire-brigade"
	CategoryFirstAid         Category = "first-aid"
	CategoryOther            Category = "other"
)

// Categories lists every valid category, in declaration order.
func Categories() []Category {
	return []Category{
		CategoryElectricalSafety,
		CategoryFlammables,
		CategoryFallProtection,
		CategoryFireBrigade,
		CategoryFirstAid,
		CategoryOther,
	}
}

func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// SubjectSnapshot captures the trained person at issuance time. It is a copy,
// not a live reference: the certificate stays verifiable even if the person's
// record later changes.
type SubjectSnapshot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	NationalID string `json:"national_id,omitempty"`
}

// TrainingSnapshot captures the completed training at issuance time.
type TrainingSnapshot struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Instructor string `json:"instructor,omitempty"`
	Hours      int    `json:"hours"`
}

// Certificate is the central entity. Snapshot fields (subject, training,
// category, completion date, evidence digest) become immutable the moment the
// status turns ISSUED; the integrity digest is a deterministic function of
// them and would silently go stale otherwise.
type Certificate struct {
	ID           uuid.UUID `json:"id"`
	PublicNumber string    `json:"public_number"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`

	Subject  SubjectSnapshot  `json:"subject"`
	Training TrainingSnapshot `json:"training"`

	CompletionDate time.Time `json:"completion_date"`
	EvidenceDigest string    `json:"evidence_digest,omitempty"`
	Score          float64   `json:"score"`
	Passed         bool      `json:"passed"`

	Status          Status     `json:"status"`
	IntegrityDigest string     `json:"integrity_digest,omitempty"`
	IssuedAt        *time.Time `json:"issued_at,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	ValidationURL   string     `json:"validation_url,omitempty"`
	QRPayload       string     `json:"qr_payload,omitempty"`

	RevocationReason string     `json:"revocation_reason,omitempty"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`

	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so stores can hand out certificates without
// exposing internal state to caller mutation.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	out := *c
	out.IssuedAt = cloneTime(c.IssuedAt)
	out.ValidUntil = cloneTime(c.ValidUntil)
	out.RevokedAt = cloneTime(c.RevokedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

// Expired reports whether an issued certificate's validity window has passed.
// Storage may still say ISSUED; validation computes the effective status lazily.
func (c *Certificate) Expired(now time.Time) bool {
	return c.Status == StatusIssued && c.ValidUntil != nil && now.After(*c.ValidUntil)
}

// StatusPatch carries the fields a compare-and-swap writes alongside the new
// status. Only the fields relevant to the transition are set.
type StatusPatch struct {
	IntegrityDigest string
	IssuedAt        *time.Time
	ValidUntil      *time.Time
	ValidationURL   string
	QRPayload       string

	RevocationReason string
	RevokedAt        *time.Time
}

// CreateDraftRequest is the input to the registry's create operation.
type CreateDraftRequest struct {
	PublicNumber   string           `json:"public_number,omitempty"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Category       Category         `json:"category"`
	Subject        SubjectSnapshot  `json:"subject"`
	Training       TrainingSnapshot `json:"training"`
	CompletionDate time.Time        `json:"completion_date"`
	EvidenceDigest string           `json:"evidence_digest,omitempty"`
	Score          float64          `json:"score"`
	Passed         bool             `json:"passed"`
	Notes          string           `json:"notes,omitempty"`
}

// Validate rejects drafts missing required facts. The evidence digest is an
// opaque upstream reference and may be empty.
func (r CreateDraftRequest) Validate() error {
	switch {
	case r.Title == "":
		return dErrors.New(dErrors.CodeBadRequest, "title is required")
	case !r.Category.IsValid():
		return dErrors.New(dErrors.CodeBadRequest, "unknown category: "+string(r.Category))
	case r.Subject.ID == "":
		return dErrors.New(dErrors.CodeBadRequest, "subject id is required")
	case r.Subject.Name == "":
		return dErrors.New(dErrors.CodeBadRequest, "subject name is required")
	case r.Training.ID == "":
		return dErrors.New(dErrors.CodeBadRequest, "training id is required")
	case r.Training.Title == "":
		return dErrors.New(dErrors.CodeBadRequest, "training title is required")
	case r.Training.Hours <= 0:
		return dErrors.New(dErrors.CodeBadRequest, "training hours must be positive")
	case r.CompletionDate.IsZero():
		return dErrors.New(dErrors.CodeBadRequest, "completion date is required")
	}
	return nil
}

// RevokeRequest is the input to the revocation workflow. The actor is logged,
// never interpreted.
type RevokeRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id,omitempty"`
}

// ValidationReason explains a negative validation outcome. Forged or guessed
// inputs are expected traffic, so these are results, not errors.
type ValidationReason string

const (
	ReasonNotFound ValidationReason = "not_found"
	ReasonRevoked  ValidationReason = "revoked"
	ReasonExpired  ValidationReason = "expired"
	ReasonTampered ValidationReason = "tampered_or_wrong_digest"
)

// ValidationResult is the public validation answer. Certificate is included
// for revoked/expired outcomes so verifiers can show what was once issued; it
// is omitted on not_found and digest mismatch to avoid oracle behavior.
type ValidationResult struct {
	Valid       bool             `json:"valid"`
	Reason      ValidationReason `json:"reason,omitempty"`
	Certificate *Certificate     `json:"certificate,omitempty"`
}
