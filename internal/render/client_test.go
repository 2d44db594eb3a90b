package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesta/internal/certificate/models"
	"attesta/pkg/platform/sentinel"
)

func TestHTTPClientRenderQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/qr", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://certs.test/validate/CERT-2024-1", req["text"])

		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	img, err := client.RenderQR(context.Background(), "https://certs.test/validate/CERT-2024-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), img)
}

func TestHTTPClientRenderPDF(t *testing.T) {
	certID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pdf", r.URL.Path)

		var cert models.Certificate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cert))
		assert.Equal(t, certID, cert.ID)

		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	doc, err := client.RenderPDF(context.Background(), &models.Certificate{ID: certID})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), doc)

	_, err = client.RenderPDF(context.Background(), nil)
	assert.Error(t, err)
}

func TestHTTPClientFailuresReadAsUnavailable(t *testing.T) {
	t.Run("non-200 response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		_, err := client.RenderQR(context.Background(), "anything")
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	})

	t.Run("unreachable service", func(t *testing.T) {
		client := NewHTTPClient("http://127.0.0.1:1", 100*time.Millisecond)
		_, err := client.RenderQR(context.Background(), "anything")
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	})
}

func TestUnconfiguredReportsUnavailable(t *testing.T) {
	var r Unconfigured
	_, err := r.RenderQR(context.Background(), "anything")
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	_, err = r.RenderPDF(context.Background(), &models.Certificate{})
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
}
