package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tourhive/backoffice/internal/core/domain"
)

type entityDocumentResponse struct {
	Entity    string          `json:"entity"`
	Schema    json.RawMessage `json:"schema"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func toEntityDocumentResponse(doc domain.EntityDocument) entityDocumentResponse {
	return entityDocumentResponse{
		Entity:    doc.Entity,
		Schema:    doc.Schema,
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// putEntitySchema stores an admin-supplied JSON Schema applied to the
// entity's payloads on top of the built-in field rules.
func (h *Handler) putEntitySchema(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	var doc json.RawMessage
	if err := decoder.Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	saved, err := h.schemas.Upsert(r.Context(), schema.Name, doc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": toEntityDocumentResponse(saved)})
}

func (h *Handler) getEntitySchema(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}

	doc, err := h.schemas.Get(r.Context(), schema.Name)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": toEntityDocumentResponse(doc)})
}

func (h *Handler) deleteEntitySchema(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}

	deleted, err := h.schemas.Delete(r.Context(), schema.Name)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"deleted": deleted}})
}
