package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"attesta/internal/certificate/models"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// InMemory keeps certificates in process memory behind a single mutex. The
// mutex gives compare-and-swap its atomicity: two concurrent issue calls on
// the same draft serialize here and the second one sees the already-flipped
// status.
type InMemory struct {
	mu        sync.RWMutex
	certs     map[uuid.UUID]*models.Certificate
	byNumber  map[string]uuid.UUID
	allocated map[string]bool
	seq       int
}

func NewInMemory() *InMemory {
	return &InMemory{
		certs:     make(map[uuid.UUID]*models.Certificate),
		byNumber:  make(map[string]uuid.UUID),
		allocated: make(map[string]bool),
	}
}

func (s *InMemory) Create(ctx context.Context, cert *models.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cert.PublicNumber == "" {
		cert.PublicNumber = s.nextNumberLocked(ctx)
	} else if s.allocated[cert.PublicNumber] {
		return fmt.Errorf("public number %s: %w", cert.PublicNumber, sentinel.ErrConflict)
	}

	now := requestcontext.Now(ctx)
	cert.Status = models.StatusPending
	cert.CreatedAt = now
	cert.UpdatedAt = now

	// Numbers stay reserved even if the draft is later deleted.
	s.allocated[cert.PublicNumber] = true
	s.byNumber[cert.PublicNumber] = cert.ID
	s.certs[cert.ID] = cert.Clone()
	return nil
}

// nextNumberLocked allocates the next CERT-<year>-<seq> number, skipping any
// caller-supplied numbers that already took a slot.
func (s *InMemory) nextNumberLocked(ctx context.Context) string {
	year := requestcontext.Now(ctx).Year()
	for {
		s.seq++
		number := fmt.Sprintf("CERT-%d-%d", year, s.seq)
		if !s.allocated[number] {
			return number
		}
	}
}

func (s *InMemory) Get(_ context.Context, id uuid.UUID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[id]
	if !ok {
		return nil, fmt.Errorf("certificate %s: %w", id, sentinel.ErrNotFound)
	}
	return cert.Clone(), nil
}

func (s *InMemory) FindByPublicNumber(_ context.Context, number string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return nil, fmt.Errorf("certificate %s: %w", number, sentinel.ErrNotFound)
	}
	return s.certs[id].Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Certificate, 0, len(s.certs))
	for _, cert := range s.certs {
		out = append(out, cert.Clone())
	}
	return out, nil
}

// CompareAndSwapStatus transitions a certificate only if its current status
// still equals expected and the edge is in the lifecycle table. It is the
// only write path for status, the integrity digest, and the revocation trail.
func (s *InMemory) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next models.Status, patch models.StatusPatch) (*models.Certificate, error) {
	if !models.CanTransition(expected, next) {
		return nil, fmt.Errorf("transition %s -> %s: %w", expected, next, sentinel.ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.certs[id]
	if !ok {
		return nil, fmt.Errorf("certificate %s: %w", id, sentinel.ErrNotFound)
	}
	if cert.Status != expected {
		return nil, fmt.Errorf("status is %s, expected %s: %w", cert.Status, expected, sentinel.ErrInvalidState)
	}

	applyPatch(cert, next, patch)
	cert.UpdatedAt = requestcontext.Now(ctx)
	return cert.Clone(), nil
}

func applyPatch(cert *models.Certificate, next models.Status, patch models.StatusPatch) {
	cert.Status = next
	switch next {
	case models.StatusIssued:
		cert.IntegrityDigest = patch.IntegrityDigest
		cert.IssuedAt = patch.IssuedAt
		cert.ValidUntil = patch.ValidUntil
		cert.ValidationURL = patch.ValidationURL
		cert.QRPayload = patch.QRPayload
	case models.StatusRevoked:
		cert.RevocationReason = patch.RevocationReason
		cert.RevokedAt = patch.RevokedAt
	}
	// EXPIRED carries no patch: the digest and issuance facts stay untouched.
}

func (s *InMemory) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.certs[id]
	if !ok {
		return nil, fmt.Errorf("certificate %s: %w", id, sentinel.ErrNotFound)
	}
	if cert.Status == models.StatusRevoked {
		return nil, fmt.Errorf("notes are frozen after revocation: %w", sentinel.ErrInvalidState)
	}
	cert.Notes = notes
	cert.UpdatedAt = requestcontext.Now(ctx)
	return cert.Clone(), nil
}

// Delete removes a draft. Issued records must remain for auditability, so any
// status other than PENDING is rejected. The public number stays reserved.
func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.certs[id]
	if !ok {
		return fmt.Errorf("certificate %s: %w", id, sentinel.ErrNotFound)
	}
	if cert.Status != models.StatusPending {
		return fmt.Errorf("only pending certificates can be deleted: %w", sentinel.ErrInvalidState)
	}
	delete(s.certs, id)
	delete(s.byNumber, cert.PublicNumber)
	return nil
}
