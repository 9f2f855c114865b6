package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tourhive/backoffice/internal/adapters/invoicing"
	"github.com/tourhive/backoffice/internal/core/domain"
	"github.com/tourhive/backoffice/internal/core/usecase"
)

const (
	adminToken = "admin-token"
	staffToken = "staff-token"
)

type sessionRepoStub struct {
	sessions map[string]domain.Session
	findErr  error
}

func (s *sessionRepoStub) FindByTokenHash(_ context.Context, tokenHash string) (domain.Session, error) {
	if s.findErr != nil {
		return domain.Session{}, s.findErr
	}
	session, ok := s.sessions[tokenHash]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return session, nil
}

func (s *sessionRepoStub) Upsert(_ context.Context, session domain.Session) error {
	s.sessions[session.TokenHash] = session
	return nil
}

func (s *sessionRepoStub) Revoke(_ context.Context, tokenHash string) error {
	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil
	}
	session.Revoked = true
	s.sessions[tokenHash] = session
	return nil
}

type entityStoreStub struct {
	createFn func(ctx context.Context, schema domain.EntitySchema, fields map[string]any) (domain.Row, error)
	getFn    func(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error)
	updateFn func(ctx context.Context, schema domain.EntitySchema, id int64, fields map[string]any) (domain.Row, domain.Row, error)
	deleteFn func(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error)
	keyFn    func(ctx context.Context, schema domain.EntitySchema, key map[string]any) (domain.Row, error)
	listFn   func(ctx context.Context, schema domain.EntitySchema, query domain.ListQuery) ([]domain.Row, int64, error)
}

func (s *entityStoreStub) Create(ctx context.Context, schema domain.EntitySchema, fields map[string]any) (domain.Row, error) {
	if s.createFn != nil {
		return s.createFn(ctx, schema, fields)
	}
	row := domain.Row{"id": int64(1)}
	for k, v := range fields {
		row[k] = v
	}
	return row, nil
}

func (s *entityStoreStub) Get(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error) {
	if s.getFn != nil {
		return s.getFn(ctx, schema, id)
	}
	return nil, domain.ErrNotFound
}

func (s *entityStoreStub) Update(ctx context.Context, schema domain.EntitySchema, id int64, fields map[string]any) (domain.Row, domain.Row, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, schema, id, fields)
	}
	return nil, nil, domain.ErrNotFound
}

func (s *entityStoreStub) Delete(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, schema, id)
	}
	return nil, domain.ErrNotFound
}

func (s *entityStoreStub) DeleteByNaturalKey(ctx context.Context, schema domain.EntitySchema, key map[string]any) (domain.Row, error) {
	if s.keyFn != nil {
		return s.keyFn(ctx, schema, key)
	}
	return nil, domain.ErrNotFound
}

func (s *entityStoreStub) List(ctx context.Context, schema domain.EntitySchema, query domain.ListQuery) ([]domain.Row, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, schema, query)
	}
	return []domain.Row{}, 0, nil
}

type auditRepoStub struct {
	recordFn func(ctx context.Context, entry domain.AuditEntry) error
	entries  []domain.AuditEntry
}

func (s *auditRepoStub) Record(ctx context.Context, entry domain.AuditEntry) error {
	if s.recordFn != nil {
		return s.recordFn(ctx, entry)
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *auditRepoStub) List(context.Context, domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	return s.entries, int64(len(s.entries)), nil
}

type outboxRepoStub struct {
	enqueued []domain.OutboxEvent
}

func (s *outboxRepoStub) Enqueue(_ context.Context, event domain.OutboxEvent) error {
	s.enqueued = append(s.enqueued, event)
	return nil
}

func (s *outboxRepoStub) FetchPending(context.Context, int) ([]domain.OutboxEvent, error) {
	return nil, nil
}

func (s *outboxRepoStub) MarkDispatched(context.Context, int64) error { return nil }

func (s *outboxRepoStub) MarkFailed(context.Context, int64, int, string, string) error { return nil }

func (s *outboxRepoStub) MarkDead(context.Context, int64, int, string) error { return nil }

type documentRepoStub struct {
	docs map[string]domain.EntityDocument
}

func (s *documentRepoStub) Upsert(_ context.Context, doc domain.EntityDocument) (domain.EntityDocument, error) {
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt
	s.docs[doc.Entity] = doc
	return doc, nil
}

func (s *documentRepoStub) Get(_ context.Context, entity string) (domain.EntityDocument, error) {
	doc, ok := s.docs[entity]
	if !ok {
		return domain.EntityDocument{}, domain.ErrNotFound
	}
	return doc, nil
}

func (s *documentRepoStub) Delete(_ context.Context, entity string) (bool, error) {
	_, ok := s.docs[entity]
	delete(s.docs, entity)
	return ok, nil
}

type fixture struct {
	router   http.Handler
	sessions *sessionRepoStub
	store    *entityStoreStub
	audit    *auditRepoStub
	outbox   *outboxRepoStub
}

func newFixture(t *testing.T, invoiceURL string) *fixture {
	t.Helper()

	sessions := &sessionRepoStub{sessions: map[string]domain.Session{
		usecase.HashToken(adminToken): {
			TokenHash: usecase.HashToken(adminToken),
			UserID:    "admin-1",
			Email:     "admin@example.com",
			Role:      domain.RoleAdmin,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		},
		usecase.HashToken(staffToken): {
			TokenHash: usecase.HashToken(staffToken),
			UserID:    "staff-1",
			Email:     "staff@example.com",
			Role:      domain.RoleStaff,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		},
	}}

	store := &entityStoreStub{}
	audit := &auditRepoStub{}
	outbox := &outboxRepoStub{}
	docs := &documentRepoStub{docs: map[string]domain.EntityDocument{}}

	authService := usecase.NewAuthService(sessions)
	schemaService := usecase.NewSchemaService(docs)
	mutationService := usecase.NewMutationService(store, audit, outbox, schemaService)
	auditService := usecase.NewAuditService(audit)
	invoiceClient := invoicing.NewClient(invoiceURL, "test-key", time.Second)

	handler := NewHandler(authService, mutationService, auditService, schemaService, invoiceClient)
	return &fixture{
		router:   handler.Router(),
		sessions: sessions,
		store:    store,
		audit:    audit,
		outbox:   outbox,
	}
}

func doRequest(t *testing.T, router http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("X-Session-Token", token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthzIsOpen(t *testing.T) {
	f := newFixture(t, "http://invalid")
	rec := doRequest(t, f.router, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
}

func TestRequestsWithoutSessionAre401(t *testing.T) {
	f := newFixture(t, "http://invalid")

	targets := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/guide_assignments"},
		{http.MethodPost, "/v1/guide_assignments"},
		{http.MethodGet, "/v1/audit-log"},
		{http.MethodGet, "/v1/invoices/pending"},
	}
	for _, target := range targets {
		rec := doRequest(t, f.router, target.method, target.path, "", "{}")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status %d", target.method, target.path, rec.Code)
		}
		if decodeBody(t, rec)["error"] != "unauthorized" {
			t.Fatalf("%s %s: body %s", target.method, target.path, rec.Body.String())
		}
	}
}

func TestSessionStoreFailureIs401(t *testing.T) {
	f := newFixture(t, "http://invalid")
	f.sessions.findErr = errors.New("sqlite disk I/O error")

	rec := doRequest(t, f.router, http.MethodGet, "/v1/guide_assignments", adminToken, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unreachable session store must deny, status %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["error"] != "unauthorized" {
		t.Fatalf("body %s", rec.Body.String())
	}
}

func TestBearerTokenAccepted(t *testing.T) {
	f := newFixture(t, "http://invalid")

	req := httptest.NewRequest(http.MethodGet, "/v1/guide_assignments", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer auth status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateEntity(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodPost, "/v1/guide_assignments", adminToken,
		`{"guide_id": "g1", "slot_id": "s1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data envelope: %s", rec.Body.String())
	}
	if data["status"] != domain.StatusToBeConfirmed {
		t.Fatalf("default status missing: %v", data)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != "created" {
		t.Fatalf("audit entries %+v", f.audit.entries)
	}
	if len(f.outbox.enqueued) != 1 {
		t.Fatalf("outbox events %d", len(f.outbox.enqueued))
	}
}

func TestCreateEntityValidationFailures(t *testing.T) {
	f := newFixture(t, "http://invalid")

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing required", `{"guide_id": "g1"}`, "slot_id"},
		{"empty string required", `{"guide_id": "", "slot_id": "s1"}`, "guide_id"},
		{"bad enum", `{"guide_id": "g1", "slot_id": "s1", "status": "maybe"}`, "status"},
		{"unknown field", `{"guide_id": "g1", "slot_id": "s1", "sneaky": 1}`, "sneaky"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, f.router, http.MethodPost, "/v1/guide_assignments", adminToken, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
			if msg, _ := decodeBody(t, rec)["error"].(string); !strings.Contains(msg, tc.want) {
				t.Fatalf("error %q should mention %q", msg, tc.want)
			}
		})
	}
}

func TestCreateEntityConflict(t *testing.T) {
	f := newFixture(t, "http://invalid")
	f.store.createFn = func(context.Context, domain.EntitySchema, map[string]any) (domain.Row, error) {
		return nil, domain.ErrConflict
	}

	rec := doRequest(t, f.router, http.MethodPost, "/v1/guide_assignments", adminToken,
		`{"guide_id": "g1", "slot_id": "s1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSucceedsWhenAuditUnavailable(t *testing.T) {
	f := newFixture(t, "http://invalid")
	f.audit.recordFn = func(context.Context, domain.AuditEntry) error {
		return errors.New("audit store offline")
	}

	rec := doRequest(t, f.router, http.MethodPost, "/v1/guide_assignments", adminToken,
		`{"guide_id": "g1", "slot_id": "s1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownEntityIs404(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodGet, "/v1/space_elevators", adminToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["error"] != "unknown entity type" {
		t.Fatalf("body %s", rec.Body.String())
	}
}

func TestGetEntityIDValidation(t *testing.T) {
	f := newFixture(t, "http://invalid")

	for _, id := range []string{"abc", "0", "-3"} {
		rec := doRequest(t, f.router, http.MethodGet, "/v1/guide_assignments/"+id, adminToken, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("id %q: status %d", id, rec.Code)
		}
	}
}

func TestGetEntityNotFound(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodGet, "/v1/guide_assignments/42", adminToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateEntity(t *testing.T) {
	f := newFixture(t, "http://invalid")
	f.store.updateFn = func(_ context.Context, _ domain.EntitySchema, id int64, fields map[string]any) (domain.Row, domain.Row, error) {
		old := domain.Row{"id": id, "status": domain.StatusToBeConfirmed}
		updated := domain.Row{"id": id, "status": fields["status"]}
		return old, updated, nil
	}

	rec := doRequest(t, f.router, http.MethodPut, "/v1/guide_assignments/3", adminToken,
		`{"status": "confirmed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["status"] != "confirmed" {
		t.Fatalf("unexpected data %v", data)
	}

	rec = doRequest(t, f.router, http.MethodPut, "/v1/guide_assignments/3", adminToken, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty update status %d", rec.Code)
	}
}

func TestDeleteEntityByNaturalKey(t *testing.T) {
	f := newFixture(t, "http://invalid")
	f.store.keyFn = func(_ context.Context, _ domain.EntitySchema, key map[string]any) (domain.Row, error) {
		return domain.Row{"id": int64(2), "guide_id": key["guide_id"], "slot_id": key["slot_id"]}, nil
	}

	rec := doRequest(t, f.router, http.MethodDelete, "/v1/guide_assignments?guide_id=g1&slot_id=s1", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodDelete, "/v1/guide_assignments", adminToken, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bare delete status %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "no row address supplied" {
		t.Fatalf("body %s", rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodDelete, "/v1/guide_assignments?guide_id=g1&slot_id=s1&extra=x", adminToken, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("extra key column status %d", rec.Code)
	}
}

func TestListEntitiesEnvelope(t *testing.T) {
	f := newFixture(t, "http://invalid")
	f.store.listFn = func(_ context.Context, _ domain.EntitySchema, query domain.ListQuery) ([]domain.Row, int64, error) {
		if query.Limit != 2 || query.Offset != 2 {
			t.Fatalf("unexpected paging %+v", query)
		}
		if query.Filters["guide_id"] != "g1" {
			t.Fatalf("unexpected filters %v", query.Filters)
		}
		if len(query.Order) != 1 || query.Order[0].Field != "slot_id" || !query.Order[0].Desc {
			t.Fatalf("unexpected order %v", query.Order)
		}
		return []domain.Row{
			{"id": int64(3), "guide_id": "g1"},
			{"id": int64(4), "guide_id": "g1"},
		}, 7, nil
	}

	rec := doRequest(t, f.router, http.MethodGet,
		"/v1/guide_assignments?guide_id=g1&limit=2&offset=2&order=-slot_id", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["count"] != float64(7) {
		t.Fatalf("count %v", body["count"])
	}
	rows, ok := body["data"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("data %v", body["data"])
	}
}

func TestListEntitiesDateParam(t *testing.T) {
	f := newFixture(t, "http://invalid")
	f.store.listFn = func(_ context.Context, _ domain.EntitySchema, query domain.ListQuery) ([]domain.Row, int64, error) {
		if query.From == nil || query.To == nil {
			t.Fatal("date bounds missing")
		}
		wantFrom := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
		wantTo := time.Date(2026, 8, 20, 23, 59, 59, 0, time.UTC)
		if !query.From.Equal(wantFrom) || !query.To.Equal(wantTo) {
			t.Fatalf("bounds %v..%v", query.From, query.To)
		}
		return nil, 0, nil
	}

	rec := doRequest(t, f.router, http.MethodGet, "/v1/guide_assignments?date=2026-08-20", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodGet, "/v1/guide_assignments?date=yesterday", adminToken, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status %d", rec.Code)
	}
}

func TestStaffCannotWritePushSubscriptions(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodPost, "/v1/push_subscriptions", staffToken,
		`{"endpoint": "https://push/1", "p256dh_key": "k", "auth_key": "a"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodPost, "/v1/push_subscriptions", adminToken,
		`{"endpoint": "https://push/1", "p256dh_key": "k", "auth_key": "a"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStaffCannotReadPushSubscriptions(t *testing.T) {
	f := newFixture(t, "http://invalid")
	f.store.getFn = func(context.Context, domain.EntitySchema, int64) (domain.Row, error) {
		return domain.Row{"id": int64(1), "endpoint": "https://push/1", "auth_key": "secret"}, nil
	}
	f.store.listFn = func(context.Context, domain.EntitySchema, domain.ListQuery) ([]domain.Row, int64, error) {
		return []domain.Row{{"id": int64(1), "auth_key": "secret"}}, 1, nil
	}

	// Subscription keys must not leak to non-admin readers.
	rec := doRequest(t, f.router, http.MethodGet, "/v1/push_subscriptions", staffToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff list status %d: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, f.router, http.MethodGet, "/v1/push_subscriptions/1", staffToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff get status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodGet, "/v1/push_subscriptions", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list status %d: %s", rec.Code, rec.Body.String())
	}

	// Unrestricted entities stay readable by staff.
	rec = doRequest(t, f.router, http.MethodGet, "/v1/guide_assignments", staffToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("staff list of open entity status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStaffCanWriteUnrestrictedEntities(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodPost, "/v1/guide_assignments", staffToken,
		`{"guide_id": "g1", "slot_id": "s1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuditLogRequiresAdmin(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodGet, "/v1/audit-log", staffToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff status %d", rec.Code)
	}

	rec = doRequest(t, f.router, http.MethodGet, "/v1/audit-log", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEntitySchemaRoutesRequireAdmin(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodPut, "/v1/entities/activity_bookings/schema", staffToken,
		`{"type": "object"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff status %d", rec.Code)
	}
}

func TestEntitySchemaLifecycle(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodPut, "/v1/entities/activity_bookings/schema", adminToken,
		`{"type": "object", "properties": {"pax": {"type": "integer", "minimum": 1}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status %d: %s", rec.Code, rec.Body.String())
	}

	// The stricter document now rejects a payload the field rules allow.
	rec = doRequest(t, f.router, http.MethodPost, "/v1/activity_bookings", adminToken,
		`{"booking_id": "b1", "activity_name": "City tour", "pax": 0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("schema-violating create status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodGet, "/v1/entities/activity_bookings/schema", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodDelete, "/v1/entities/activity_bookings/schema", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodPost, "/v1/activity_bookings", adminToken,
		`{"booking_id": "b1", "activity_name": "City tour", "pax": 0}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create after schema removal status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSignOutRevokesSession(t *testing.T) {
	f := newFixture(t, "http://invalid")

	rec := doRequest(t, f.router, http.MethodPost, "/v1/auth/sign-out", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-out status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, f.router, http.MethodGet, "/v1/guide_assignments", adminToken, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked session status %d", rec.Code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	f := newFixture(t, "http://invalid")

	for _, body := range []string{`{broken`, `{"guide_id": "g1"} trailing`} {
		rec := doRequest(t, f.router, http.MethodPost, "/v1/guide_assignments", adminToken, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d", body, rec.Code)
		}
	}
}

func TestInvoiceProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case invoicing.PathPendingBookings:
			if r.URL.RawQuery != "status=unpaid&limit=5" {
				t.Errorf("query not forwarded verbatim: %q", r.URL.RawQuery)
			}
			if r.Header.Get("X-API-Key") != "test-key" {
				t.Errorf("missing api key header")
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"booking": "b1"}]`))
		case invoicing.PathPlaceholders:
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>maintenance</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	f := newFixture(t, upstream.URL)

	rec := doRequest(t, f.router, http.MethodGet, "/v1/invoices/pending?status=unpaid&limit=5", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if _, ok := body["data"].([]any); !ok {
		t.Fatalf("data envelope missing: %s", rec.Body.String())
	}

	// Non-JSON upstream body must never be relayed.
	rec = doRequest(t, f.router, http.MethodGet, "/v1/invoices/placeholders", adminToken, "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "<html>") {
		t.Fatal("upstream body leaked through")
	}
}

func TestInvoiceProxyPropagatesUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	f := newFixture(t, upstream.URL)

	rec := doRequest(t, f.router, http.MethodGet, "/v1/invoices/pending", adminToken, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}
