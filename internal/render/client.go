package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"attesta/internal/certificate/models"
	"attesta/pkg/platform/sentinel"
)

// maxRenderedBytes caps renderer responses so a misbehaving collaborator
// cannot exhaust memory.
const maxRenderedBytes = 10 << 20

// HTTPClient talks to an external renderer service exposing POST /qr and
// POST /pdf. The service is a collaborator, not part of the core: any failure
// is wrapped as unavailable and callers decide how to degrade.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) RenderQR(ctx context.Context, text string) ([]byte, error) {
	payload := map[string]string{"text": text}
	return c.post(ctx, "/qr", payload)
}

func (c *HTTPClient) RenderPDF(ctx context.Context, cert *models.Certificate) ([]byte, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate snapshot is required")
	}
	return c.post(ctx, "/pdf", cert)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("renderer call failed: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	rendered, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderedBytes))
	if err != nil {
		return nil, fmt.Errorf("read rendered output: %w: %w", sentinel.ErrUnavailable, err)
	}
	return rendered, nil
}
