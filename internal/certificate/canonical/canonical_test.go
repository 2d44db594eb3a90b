package canonical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesta/internal/certificate/models"
)

func samplePayload() Payload {
	return Payload{
		CertID:         "CERT-2024-100",
		SubjectID:      "subject-1",
		TrainingID:     "training-9",
		Category:       models.CategoryFallProtection,
		Hours:          24,
		CompletionDate: time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC),
		EvidenceDigest: "sha256:abc123",
		IssuedDate:     time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC),
	}
}

func TestEncode(t *testing.T) {
	t.Run("renders fields in lexicographic key order", func(t *testing.T) {
		got := samplePayload().Encode()
		want := "category=fall-protection" +
			"&cert_id=CERT-2024-100" +
			"&completion_date=2024-03-10" +
			"&evidence_digest=sha256:abc123" +
			"&hours=24" +
			"&issued_date=2024-03-12" +
			"&subject_id=subject-1" +
			"&training_id=training-9"
		assert.Equal(t, want, got)
	})

	t.Run("is deterministic across calls", func(t *testing.T) {
		p := samplePayload()
		first := p.Encode()
		for i := 0; i < 50; i++ {
			require.Equal(t, first, p.Encode())
		}
	})

	t.Run("drops sub-day precision and normalizes to UTC", func(t *testing.T) {
		loc := time.FixedZone("UTC-5", -5*60*60)
		a := samplePayload()
		b := samplePayload()
		// 21:00 UTC-5 on the 10th is 02:00 UTC on the 11th.
		a.CompletionDate = time.Date(2024, 3, 10, 21, 0, 0, 0, loc)
		b.CompletionDate = time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)
		assert.Equal(t, a.Encode(), b.Encode())
		assert.Contains(t, a.Encode(), "completion_date=2024-03-11")
	})

	t.Run("escapes structural characters in values", func(t *testing.T) {
		p := samplePayload()
		p.SubjectID = "a=b&c%d"
		got := p.Encode()
		assert.Contains(t, got, "subject_id=a%3Db%26c%25d")
		// The join structure must stay parseable: exactly 7 separator '&'.
		assert.Equal(t, 7, strings.Count(got, "&"))
	})

	t.Run("distinct facts never collide", func(t *testing.T) {
		a := samplePayload()
		b := samplePayload()
		b.SubjectID = "subject-2"
		assert.NotEqual(t, a.Encode(), b.Encode())
	})
}

func TestFromCertificate(t *testing.T) {
	issuedAt := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	cert := &models.Certificate{
		PublicNumber:   "CERT-2024-100",
		Category:       models.CategoryFirstAid,
		Subject:        models.SubjectSnapshot{ID: "subject-1", Name: "Ana"},
		Training:       models.TrainingSnapshot{ID: "training-9", Title: "First Aid", Hours: 16},
		CompletionDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		EvidenceDigest: "sha256:abc123",
	}

	p := FromCertificate(cert, issuedAt)

	assert.Equal(t, "CERT-2024-100", p.CertID)
	assert.Equal(t, "subject-1", p.SubjectID)
	assert.Equal(t, "training-9", p.TrainingID)
	assert.Equal(t, models.CategoryFirstAid, p.Category)
	assert.Equal(t, 16, p.Hours)
	assert.Equal(t, issuedAt, p.IssuedDate)
	assert.Equal(t, "sha256:abc123", p.EvidenceDigest)
}
