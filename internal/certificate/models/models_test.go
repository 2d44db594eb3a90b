package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dErrors "attesta/pkg/domain-errors"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusIssued}: true,
		{StatusIssued, StatusExpired}: true,
		{StatusIssued, StatusRevoked}: true,
	}

	statuses := []Status{StatusPending, StatusIssued, StatusExpired, StatusRevoked}
	for _, from := range statuses {
		for _, to := range statuses {
			got := CanTransition(from, to)
			assert.Equal(t, allowed[[2]Status{from, to}], got,
				"transition %s -> %s", from, to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusIssued.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.True(t, StatusRevoked.Terminal())
}

func TestCategoryIsValid(t *testing.T) {
	for _, category := range Categories() {
		assert.True(t, category.IsValid(), "category %s", category)
	}
	assert.False(t, Category("scuba-diving").IsValid())
	assert.False(t, Category("").IsValid())
}

func TestCertificateExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("issued past validUntil is expired", func(t *testing.T) {
		cert := &Certificate{Status: StatusIssued, ValidUntil: &past}
		assert.True(t, cert.Expired(now))
	})

	t.Run("issued within window is not expired", func(t *testing.T) {
		cert := &Certificate{Status: StatusIssued, ValidUntil: &future}
		assert.False(t, cert.Expired(now))
	})

	t.Run("pending never reports expired", func(t *testing.T) {
		cert := &Certificate{Status: StatusPending}
		assert.False(t, cert.Expired(now))
	})

	t.Run("revoked never reports expired", func(t *testing.T) {
		cert := &Certificate{Status: StatusRevoked, ValidUntil: &past}
		assert.False(t, cert.Expired(now))
	})
}

func TestCertificateClone(t *testing.T) {
	issuedAt := time.Now()
	cert := &Certificate{Status: StatusIssued, IssuedAt: &issuedAt, Notes: "original"}

	clone := cert.Clone()
	clone.Notes = "changed"
	*clone.IssuedAt = issuedAt.Add(time.Hour)

	assert.Equal(t, "original", cert.Notes)
	assert.True(t, cert.IssuedAt.Equal(issuedAt), "clone must not share time pointers")
}

func validDraft() CreateDraftRequest {
	return CreateDraftRequest{
		Title:          "Fall Protection Training",
		Category:       CategoryFallProtection,
		Subject:        SubjectSnapshot{ID: "subject-1", Name: "Ana"},
		Training:       TrainingSnapshot{ID: "training-1", Title: "NR-35", Hours: 24},
		CompletionDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateDraftRequestValidate(t *testing.T) {
	t.Run("accepts a complete draft", func(t *testing.T) {
		assert.NoError(t, validDraft().Validate())
	})

	mutations := map[string]func(*CreateDraftRequest){
		"missing title":           func(r *CreateDraftRequest) { r.Title = "" },
		"unknown category":        func(r *CreateDraftRequest) { r.Category = "karaoke" },
		"missing subject id":      func(r *CreateDraftRequest) { r.Subject.ID = "" },
		"missing subject name":    func(r *CreateDraftRequest) { r.Subject.Name = "" },
		"missing training id":     func(r *CreateDraftRequest) { r.Training.ID = "" },
		"missing training title":  func(r *CreateDraftRequest) { r.Training.Title = "" },
		"zero training hours":     func(r *CreateDraftRequest) { r.Training.Hours = 0 },
		"negative training hours": func(r *CreateDraftRequest) { r.Training.Hours = -8 },
		"missing completion date": func(r *CreateDraftRequest) { r.CompletionDate = time.Time{} },
	}

	for name, mutate := range mutations {
		t.Run("rejects "+name, func(t *testing.T) {
			draft := validDraft()
			mutate(&draft)
			err := draft.Validate()
			assert.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		})
	}
}
