// Package canonical renders the immutable facts of a certificate into a
// byte-stable string. Any party holding the same facts must produce the same
// bytes, otherwise the integrity digest cannot be independently recomputed
// and public validation breaks.
package canonical

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"attesta/internal/certificate/models"
)

// dateLayout fixes date rendering so time zones and sub-day precision never
// leak into the payload.
const dateLayout = "2006-01-02"

// Payload selects the fixed field set bound by the integrity digest. Fields
// added here require a new digest version in the integrity package.
type Payload struct {
	CertID         string
	SubjectID      string
	TrainingID     string
	Category       models.Category
	Hours          int
	CompletionDate time.Time
	EvidenceDigest string
	IssuedDate     time.Time
}

// FromCertificate extracts the digest-bound facts from a certificate. The
// issued date must already be set; callers build the payload after stamping
// IssuedAt and before persisting the transition.
func FromCertificate(cert *models.Certificate, issuedAt time.Time) Payload {
	return Payload{
		CertID:         cert.PublicNumber,
		SubjectID:      cert.Subject.ID,
		TrainingID:     cert.Training.ID,
		Category:       cert.Category,
		Hours:          cert.Training.Hours,
		CompletionDate: cert.CompletionDate,
		EvidenceDigest: cert.EvidenceDigest,
		IssuedDate:     issuedAt,
	}
}

// Encode renders the payload as k=v pairs joined by '&', keys ordered
// lexicographically. Values escape the three structural characters so no two
// semantically different payloads can collide on the same string.
func (p Payload) Encode() string {
	fields := map[string]string{
		"category":        string(p.Category),
		"cert_id":         p.CertID,
		"completion_date": p.CompletionDate.UTC().Format(dateLayout),
		"evidence_digest": p.EvidenceDigest,
		"hours":           fmt.Sprintf("%d", p.Hours),
		"issued_date":     p.IssuedDate.UTC().Format(dateLayout),
		"subject_id":      p.SubjectID,
		"training_id":     p.TrainingID,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+escape(fields[k]))
	}
	return strings.Join(pairs, "&")
}

var escaper = strings.NewReplacer("%", "%25", "&", "%26", "=", "%3D")

func escape(v string) string {
	return escaper.Replace(v)
}
