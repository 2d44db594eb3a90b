// Package render holds the collaborator contracts for QR and PDF generation.
// The core never touches pixels or page layout: it hands a payload string (or
// an immutable certificate snapshot) to an external renderer service and
// treats the returned bytes as opaque. Renderer failures are non-fatal by
// contract; issuance is already durable when rendering is attempted.
package render

import (
	"context"
	"fmt"

	"attesta/internal/certificate/models"
	"attesta/pkg/platform/sentinel"
)

// QRRenderer turns a validation URL into an image.
type QRRenderer interface {
	RenderQR(ctx context.Context, text string) ([]byte, error)
}

// PDFRenderer turns an issued certificate snapshot into a printable document.
// Callers must only pass ISSUED certificates; the snapshot is complete and
// immutable, so rendering is idempotent and can be retried at will.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, cert *models.Certificate) ([]byte, error)
}

// Unconfigured stands in when no renderer service is deployed. Every call
// reports the collaborator as unavailable so handlers fall back to the plain
// validation URL.
type Unconfigured struct{}

func (Unconfigured) RenderQR(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("qr renderer not configured: %w", sentinel.ErrUnavailable)
}

func (Unconfigured) RenderPDF(context.Context, *models.Certificate) ([]byte, error) {
	return nil, fmt.Errorf("pdf renderer not configured: %w", sentinel.ErrUnavailable)
}
