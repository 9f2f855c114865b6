package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tourhive/backoffice/internal/adapters/invoicing"
	"github.com/tourhive/backoffice/internal/core/domain"
	"github.com/tourhive/backoffice/internal/core/usecase"
)

type ctxKey string

const (
	principalCtxKey ctxKey = "principal"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	auth      *usecase.AuthService
	mutations *usecase.MutationService
	audit     *usecase.AuditService
	schemas   *usecase.SchemaService
	invoices  *invoicing.Client
	registry  map[string]domain.EntitySchema
}

func NewHandler(auth *usecase.AuthService, mutations *usecase.MutationService, audit *usecase.AuditService, schemas *usecase.SchemaService, invoices *invoicing.Client) *Handler {
	return &Handler{
		auth:      auth,
		mutations: mutations,
		audit:     audit,
		schemas:   schemas,
		invoices:  invoices,
		registry:  domain.EntityRegistry(),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireSession)

		pr.Post("/v1/auth/sign-out", h.signOut)
		pr.Get("/v1/audit-log", h.listAuditLog)

		pr.Get("/v1/invoices/pending", h.proxyInvoices(invoicing.PathPendingBookings))
		pr.Get("/v1/invoices/placeholders", h.proxyInvoices(invoicing.PathPlaceholders))

		pr.Put("/v1/entities/{entity}/schema", h.putEntitySchema)
		pr.Get("/v1/entities/{entity}/schema", h.getEntitySchema)
		pr.Delete("/v1/entities/{entity}/schema", h.deleteEntitySchema)

		pr.Get("/v1/{entity}", h.listEntities)
		pr.Post("/v1/{entity}", h.createEntity)
		pr.Delete("/v1/{entity}", h.deleteEntityByNaturalKey)
		pr.Get("/v1/{entity}/{id}", h.getEntity)
		pr.Put("/v1/{entity}/{id}", h.updateEntity)
		pr.Delete("/v1/{entity}/{id}", h.deleteEntity)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireSession resolves the caller's session token to a Principal and
// stores it in the request context. Anything short of a valid, live
// session is a 401 and the request goes no further; that includes a
// session store the verifier could not reach.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.auth.Verify(r.Context(), sessionToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), principalCtxKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), sessionToken(r)); err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"signed_out": true}})
}

func sessionToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("X-Session-Token")); token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func principalFromContext(ctx context.Context) domain.Principal {
	principal, _ := ctx.Value(principalCtxKey).(domain.Principal)
	return principal
}

// entitySchema resolves the {entity} URL segment against the registry.
func (h *Handler) entitySchema(w http.ResponseWriter, r *http.Request) (domain.EntitySchema, bool) {
	name := chi.URLParam(r, "entity")
	schema, ok := h.registry[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown entity type")
		return domain.EntitySchema{}, false
	}
	return schema, true
}

// allowEntity enforces the entity's role requirement. It gates reads as
// well as writes: a role-restricted entity's rows (push subscription
// keys, say) are no less sensitive to read than to change. Missing or
// insufficient roles deny; nothing here ever defaults to allow.
func (h *Handler) allowEntity(w http.ResponseWriter, r *http.Request, schema domain.EntitySchema) (domain.Principal, bool) {
	principal := principalFromContext(r.Context())
	if !h.auth.HasRole(principal, schema.WriteRole) {
		writeError(w, http.StatusForbidden, "forbidden")
		return domain.Principal{}, false
	}
	return principal, true
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal := principalFromContext(r.Context())
	if !h.auth.HasRole(principal, domain.RoleAdmin) {
		writeError(w, http.StatusForbidden, "forbidden")
		return domain.Principal{}, false
	}
	return principal, true
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}
	principal, ok := h.allowEntity(w, r, schema)
	if !ok {
		return
	}

	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	row, err := h.mutations.Create(r.Context(), schema, fields, principal, clientContext(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"data": row})
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}
	if _, ok := h.allowEntity(w, r, schema); !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	row, err := h.mutations.Get(r.Context(), schema, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": row})
}

func (h *Handler) updateEntity(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}
	principal, ok := h.allowEntity(w, r, schema)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	row, err := h.mutations.Update(r.Context(), schema, id, fields, principal, clientContext(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": row})
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}
	principal, ok := h.allowEntity(w, r, schema)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	old, err := h.mutations.Delete(r.Context(), schema, id, principal, clientContext(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": old})
}

// deleteEntityByNaturalKey deletes the row addressed by composite-key
// query parameters, for entities that declare a natural key.
func (h *Handler) deleteEntityByNaturalKey(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}
	principal, ok := h.allowEntity(w, r, schema)
	if !ok {
		return
	}

	query := r.URL.Query()
	if len(query) == 0 {
		writeError(w, http.StatusBadRequest, "no row address supplied")
		return
	}
	key := make(map[string]any, len(query))
	for name := range query {
		key[name] = query.Get(name)
	}

	old, err := h.mutations.DeleteByNaturalKey(r.Context(), schema, key, principal, clientContext(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": old})
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.entitySchema(w, r)
	if !ok {
		return
	}
	if _, ok := h.allowEntity(w, r, schema); !ok {
		return
	}

	query, err := parseListQuery(r, schema)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	rows, total, err := h.mutations.List(r.Context(), schema, query)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "count": total})
}

func (h *Handler) listAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	query := r.URL.Query()
	filter := domain.AuditFilter{
		EntityType: query.Get("entity_type"),
		EntityID:   query.Get("entity_id"),
		Action:     query.Get("action"),
		ActorID:    query.Get("actor_id"),
	}

	var ok bool
	if filter.Limit, ok = parseIntParam(w, query.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = parseIntParam(w, query.Get("offset"), "offset"); !ok {
		return
	}

	entries, total, err := h.audit.List(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": entries, "count": total})
}

// proxyInvoices forwards the caller's query string verbatim to the
// invoice service and relays its JSON payload. Upstream failures keep
// their status; non-JSON upstream bodies become a 502 and are never
// passed through.
func (h *Handler) proxyInvoices(subPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := h.invoices.Fetch(r.Context(), subPath, r.URL.RawQuery)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": payload})
	}
}

func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)

	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	return fields, true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseIntParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return value, true
}

// clientContext extracts best-effort request origin details for audit
// rows. X-Forwarded-For may carry a comma-separated chain; the first
// segment is the original client.
func clientContext(r *http.Request) domain.ClientContext {
	ip := ""
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		ip = strings.TrimSpace(realIP)
	} else {
		ip = r.RemoteAddr
		if idx := strings.LastIndex(ip, ":"); idx != -1 {
			ip = ip[:idx]
		}
	}
	return domain.ClientContext{IP: ip, UserAgent: r.UserAgent()}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// handleError maps pipeline failures to the wire taxonomy. Internal
// detail is logged, never echoed to the caller.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *invoicing.UpstreamError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.As(err, &upstream):
		log.Printf("%s %s upstream: %v", r.Method, r.URL.Path, err)
		writeError(w, upstream.Status, upstream.Message)
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
