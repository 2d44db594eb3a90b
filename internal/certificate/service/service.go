// Package service orchestrates the certificate lifecycle: draft creation,
// issuance, public validation, and revocation. All status writes go through
// the registry's compare-and-swap, so every transition is at-most-once even
// under concurrent callers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attesta/internal/certificate/canonical"
	"attesta/internal/certificate/integrity"
	"attesta/internal/certificate/metrics"
	"attesta/internal/certificate/models"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/audit"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// Store is the registry contract. It owns durability and enforces the
// lifecycle transition table; the service decides which transitions to ask for.
type Store interface {
	Create(ctx context.Context, cert *models.Certificate) error
	Get(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	FindByPublicNumber(ctx context.Context, number string) (*models.Certificate, error)
	List(ctx context.Context) ([]*models.Certificate, error)
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next models.Status, patch models.StatusPatch) (*models.Certificate, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Certificate, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Cache fronts the public-number lookup. Misses and failures both fall
// through to the store.
type Cache interface {
	Get(ctx context.Context, publicNumber string) (*models.Certificate, bool)
	Set(ctx context.Context, cert *models.Certificate)
	Invalidate(ctx context.Context, publicNumber string)
}

// ValidityPolicy decides how long an issued certificate stays valid.
type ValidityPolicy struct {
	Default     time.Duration
	PerCategory map[models.Category]time.Duration
}

// DefaultValidityPolicy issues for one year across all categories.
func DefaultValidityPolicy() ValidityPolicy {
	return ValidityPolicy{Default: 365 * 24 * time.Hour}
}

// For returns the validity period for a category.
func (p ValidityPolicy) For(category models.Category) time.Duration {
	if d, ok := p.PerCategory[category]; ok {
		return d
	}
	return p.Default
}

type Service struct {
	store   Store
	cache   Cache
	policy  ValidityPolicy
	baseURL string
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithValidityPolicy(policy ValidityPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// New constructs the certificate service. baseURL is the public origin used
// to build validation links, e.g. "https://certs.example.com".
func New(store Store, baseURL string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("certificate store is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("validation base URL is required")
	}

	svc := &Service{
		store:   store,
		baseURL: baseURL,
		policy:  DefaultValidityPolicy(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("attesta/certificate"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create registers a draft certificate. The registry allocates a public
// number unless the draft supplies one; the number is never reused, even if
// the draft is deleted later.
func (s *Service) Create(ctx context.Context, req models.CreateDraftRequest) (*models.Certificate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cert := &models.Certificate{
		ID:             uuid.New(),
		PublicNumber:   req.PublicNumber,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Subject:        req.Subject,
		Training:       req.Training,
		CompletionDate: req.CompletionDate,
		EvidenceDigest: req.EvidenceDigest,
		Score:          req.Score,
		Passed:         req.Passed,
		Notes:          req.Notes,
	}

	if err := s.store.Create(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "public number already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certificate")
	}

	s.metrics.IncCreated()
	audit.Log(ctx, s.logger, s.audit, audit.ActionCertificateCreated,
		"certificate_id", cert.ID.String(),
		"public_number", cert.PublicNumber,
	)
	return cert, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	cert, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "failed to get certificate")
	}
	return cert, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Certificate, error) {
	certs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return certs, nil
}

// Issue moves a draft to ISSUED: it stamps the issuance instant, derives the
// validity window from the category policy, binds the immutable facts into
// the integrity digest, and builds the public validation link. The
// compare-and-swap guarantees a second concurrent attempt loses.
func (s *Service) Issue(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Issue",
		trace.WithAttributes(attribute.String("certificate.id", id.String())))
	defer span.End()

	cert, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "failed to load certificate for issuance")
	}
	if cert.Status != models.StatusPending {
		return nil, dErrors.New(dErrors.CodeConflict, "only pending certificates can be issued")
	}

	now := requestcontext.Now(ctx)
	validUntil := now.Add(s.policy.For(cert.Category))

	payload := canonical.FromCertificate(cert, now)
	digest := integrity.Digest(payload.Encode())
	validationURL := s.validationURL(cert.PublicNumber, digest)

	issued, err := s.store.CompareAndSwapStatus(ctx, id, models.StatusPending, models.StatusIssued, models.StatusPatch{
		IntegrityDigest: digest,
		IssuedAt:        &now,
		ValidUntil:      &validUntil,
		ValidationURL:   validationURL,
		QRPayload:       validationURL,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "only pending certificates can be issued")
		}
		return nil, translateStoreError(err, "failed to issue certificate")
	}

	if s.cache != nil {
		s.cache.Set(ctx, issued)
	}
	s.metrics.IncIssued()
	audit.Log(ctx, s.logger, s.audit, audit.ActionCertificateIssued,
		"certificate_id", issued.ID.String(),
		"public_number", issued.PublicNumber,
		"valid_until", validUntil.Format(time.RFC3339),
	)
	return issued, nil
}

func (s *Service) validationURL(publicNumber, digest string) string {
	query := url.Values{"digest": {digest}}
	return s.baseURL + "/validate/" + url.PathEscape(publicNumber) + "?" + query.Encode()
}

// Validate answers the public "is this credential currently valid?" question
// without authentication. It is side-effect-free except for the lazy
// ISSUED -> EXPIRED write-through, which is idempotent; losing that race to
// another reader is harmless.
func (s *Service) Validate(ctx context.Context, publicNumber, digest string) (*models.ValidationResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Validate",
		trace.WithAttributes(attribute.String("certificate.public_number", publicNumber)))
	defer span.End()

	start := time.Now()
	result, err := s.validate(ctx, publicNumber, digest)
	if err != nil {
		return nil, err
	}

	outcome := "valid"
	if !result.Valid {
		outcome = string(result.Reason)
	}
	s.metrics.ObserveValidation(outcome, time.Since(start).Seconds())
	audit.Log(ctx, s.logger, s.audit, audit.ActionValidationChecked,
		"public_number", publicNumber,
		"reason", outcome,
	)
	return result, nil
}

func (s *Service) validate(ctx context.Context, publicNumber, digest string) (*models.ValidationResult, error) {
	cert, err := s.lookup(ctx, publicNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.ValidationResult{Valid: false, Reason: models.ReasonNotFound}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up certificate")
	}

	switch {
	case cert.Status == models.StatusPending:
		// A draft has no digest and no public existence yet.
		return &models.ValidationResult{Valid: false, Reason: models.ReasonNotFound}, nil

	case cert.Status == models.StatusRevoked:
		return &models.ValidationResult{Valid: false, Reason: models.ReasonRevoked, Certificate: cert}, nil

	case cert.Status == models.StatusExpired:
		return &models.ValidationResult{Valid: false, Reason: models.ReasonExpired, Certificate: cert}, nil

	case cert.Expired(requestcontext.Now(ctx)):
		expired := s.markExpired(ctx, cert)
		return &models.ValidationResult{Valid: false, Reason: models.ReasonExpired, Certificate: expired}, nil
	}

	if !integrity.Verify(cert.IntegrityDigest, digest) {
		// Forged or guessed inputs are expected traffic, not a fault. The
		// certificate is withheld so the endpoint cannot be used as an oracle.
		return &models.ValidationResult{Valid: false, Reason: models.ReasonTampered}, nil
	}

	return &models.ValidationResult{Valid: true, Certificate: cert}, nil
}

func (s *Service) lookup(ctx context.Context, publicNumber string) (*models.Certificate, error) {
	if s.cache != nil {
		if cert, ok := s.cache.Get(ctx, publicNumber); ok {
			return cert, nil
		}
	}
	cert, err := s.store.FindByPublicNumber(ctx, publicNumber)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cert)
	}
	return cert, nil
}

// markExpired performs the lazy write-through. A lost compare-and-swap means
// another reader (or an admin revoking) got there first; re-read and move on.
func (s *Service) markExpired(ctx context.Context, cert *models.Certificate) *models.Certificate {
	expired, err := s.store.CompareAndSwapStatus(ctx, cert.ID, models.StatusIssued, models.StatusExpired, models.StatusPatch{})
	if err != nil {
		if current, getErr := s.store.Get(ctx, cert.ID); getErr == nil {
			expired = current
		} else {
			expired = cert
		}
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cert.PublicNumber)
	}
	audit.Log(ctx, s.logger, s.audit, audit.ActionCertificateExpired,
		"certificate_id", cert.ID.String(),
		"public_number", cert.PublicNumber,
	)
	return expired
}

// Revoke is the administrative terminal transition. The integrity digest is
// left untouched: it still proves the facts were once issued, only the
// current validity changes.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, req models.RevokeRequest) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Revoke",
		trace.WithAttributes(attribute.String("certificate.id", id.String())))
	defer span.End()

	if req.Reason == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "revocation reason is required")
	}

	now := requestcontext.Now(ctx)
	revoked, err := s.store.CompareAndSwapStatus(ctx, id, models.StatusIssued, models.StatusRevoked, models.StatusPatch{
		RevocationReason: req.Reason,
		RevokedAt:        &now,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "only issued certificates can be revoked")
		}
		return nil, translateStoreError(err, "failed to revoke certificate")
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, revoked.PublicNumber)
	}
	s.metrics.IncRevoked()
	audit.Log(ctx, s.logger, s.audit, audit.ActionCertificateRevoked,
		"certificate_id", revoked.ID.String(),
		"public_number", revoked.PublicNumber,
		"reason", req.Reason,
		"actor_id", req.ActorID,
	)
	return revoked, nil
}

// UpdateNotes changes the free-text notes. Allowed at every lifecycle stage
// except after revocation.
func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Certificate, error) {
	cert, err := s.store.UpdateNotes(ctx, id, notes)
	if err != nil {
		return nil, translateStoreError(err, "failed to update notes")
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cert.PublicNumber)
	}
	return cert, nil
}

// Delete removes a draft. Issued records must remain for auditability.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return translateStoreError(err, "failed to delete certificate")
	}
	audit.Log(ctx, s.logger, s.audit, audit.ActionCertificateDeleted,
		"certificate_id", id.String(),
	)
	return nil
}

func translateStoreError(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, message)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, message)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}
