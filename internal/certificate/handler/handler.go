package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"attesta/internal/certificate/models"
	"attesta/internal/platform/middleware"
	"attesta/internal/render"
	"attesta/internal/transport/http/shared"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// Service defines the certificate operations the HTTP layer delegates to.
type Service interface {
	Create(ctx context.Context, req models.CreateDraftRequest) (*models.Certificate, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	List(ctx context.Context) ([]*models.Certificate, error)
	Issue(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	Validate(ctx context.Context, publicNumber, digest string) (*models.ValidationResult, error)
	Revoke(ctx context.Context, id uuid.UUID, req models.RevokeRequest) (*models.Certificate, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Certificate, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler wires certificate endpoints to the service. It stays thin: parse,
// delegate, translate.
type Handler struct {
	logger *slog.Logger
	certs  Service
	qr     render.QRRenderer
	pdf    render.PDFRenderer
}

func New(certs Service, qr render.QRRenderer, pdf render.PDFRenderer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, certs: certs, qr: qr, pdf: pdf}
}

// Register mounts the admin CRUD routes and the public validation route.
func (h *Handler) Register(r chi.Router) {
	r.Route("/certificates", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Actor)
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/issue", h.handleIssue)
		r.Post("/{id}/revoke", h.handleRevoke)
		r.Patch("/{id}/notes", h.handleUpdateNotes)
		r.Delete("/{id}", h.handleDelete)
		r.Get("/{id}/pdf", h.handlePDF)
		r.Get("/{id}/qr", h.handleQR)
	})

	// Public, unauthenticated. Verifiers follow the QR link here.
	r.Get("/validate/{publicNumber}", h.handleValidate)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	cert, err := h.certs.Create(ctx, req)
	if err != nil {
		h.logError(ctx, "failed to create certificate", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, cert)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	certs, err := h.certs.List(r.Context())
	if err != nil {
		h.logError(r.Context(), "failed to list certificates", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, certs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.certID(w, r)
	if !ok {
		return
	}
	cert, err := h.certs.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.certID(w, r)
	if !ok {
		return
	}
	cert, err := h.certs.Issue(r.Context(), id)
	if err != nil {
		h.logError(r.Context(), "failed to issue certificate", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	publicNumber := chi.URLParam(r, "publicNumber")
	digest := r.URL.Query().Get("digest")

	result, err := h.certs.Validate(r.Context(), publicNumber, digest)
	if err != nil {
		h.logError(r.Context(), "validation lookup failed", err)
		shared.WriteError(w, err)
		return
	}
	// Negative verdicts are normal answers, not HTTP errors.
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.certID(w, r)
	if !ok {
		return
	}

	var req models.RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.ActorID == "" {
		req.ActorID = requestcontext.ActorID(ctx)
	}

	cert, err := h.certs.Revoke(ctx, id, req)
	if err != nil {
		h.logError(ctx, "failed to revoke certificate", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.certID(w, r)
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	cert, err := h.certs.UpdateNotes(r.Context(), id, req.Notes)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.certID(w, r)
	if !ok {
		return
	}
	if err := h.certs.Delete(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePDF renders an issued certificate on demand. Issuance is already
// durable by the time anyone asks for a document, so a renderer outage is a
// retryable 503, never a data problem.
func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.certID(w, r)
	if !ok {
		return
	}

	cert, err := h.certs.Get(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if cert.Status != models.StatusIssued {
		shared.WriteError(w, dErrors.New(dErrors.CodeConflict, "only issued certificates can be rendered"))
		return
	}

	doc, err := h.pdf.RenderPDF(ctx, cert)
	if err != nil {
		h.logError(ctx, "pdf rendering failed", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "pdf renderer unavailable"))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// handleQR returns the QR image for the validation link. If the renderer is
// down the response degrades to the plain validation URL as text.
func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.certID(w, r)
	if !ok {
		return
	}

	cert, err := h.certs.Get(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if cert.QRPayload == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeConflict, "certificate has not been issued"))
		return
	}

	img, err := h.qr.RenderQR(ctx, cert.QRPayload)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cert.ValidationURL))
			return
		}
		h.logError(ctx, "qr rendering failed", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "qr renderer unavailable"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (h *Handler) certID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid certificate id"))
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
