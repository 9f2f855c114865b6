package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tourhive/backoffice/internal/adapters/events"
	"github.com/tourhive/backoffice/internal/adapters/httpapi"
	"github.com/tourhive/backoffice/internal/adapters/invoicing"
	sqliteadapter "github.com/tourhive/backoffice/internal/adapters/sqlite"
	"github.com/tourhive/backoffice/internal/adapters/sqlite/gormsqlite"
	"github.com/tourhive/backoffice/internal/core/domain"
	"github.com/tourhive/backoffice/internal/core/ports"
	"github.com/tourhive/backoffice/internal/core/usecase"
	"github.com/tourhive/backoffice/migrations"
)

type Config struct {
	Addr            string
	DBPath          string
	InvoiceBaseURL  string
	InvoiceAPIKey   string
	WebhookURL      string
	WebhookSecret   string
	BootstrapToken  string
	BootstrapUserID string
	BootstrapEmail  string
	BootstrapRole   string
	SessionTTL      time.Duration
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	sessionRepo := sqliteadapter.NewSessionRepository(db)
	entityStore := sqliteadapter.NewEntityStore(db)
	auditRepo := sqliteadapter.NewAuditRepository(db)
	schemaRepo := sqliteadapter.NewSchemaRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	authService := usecase.NewAuthService(sessionRepo)
	schemaService := usecase.NewSchemaService(schemaRepo)
	mutationService := usecase.NewMutationService(entityStore, auditRepo, outboxRepo, schemaService)
	auditService := usecase.NewAuditService(auditRepo)

	var publisher ports.EventPublisher = events.NewLogPublisher()
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	}
	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, publisher, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	if cfg.BootstrapToken != "" {
		ttl := cfg.SessionTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		role := cfg.BootstrapRole
		if role == "" {
			role = domain.RoleAdmin
		}

		bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := sessionRepo.Upsert(bootstrapCtx, domain.Session{
			TokenHash: usecase.HashToken(cfg.BootstrapToken),
			UserID:    cfg.BootstrapUserID,
			Email:     cfg.BootstrapEmail,
			Role:      role,
			ExpiresAt: time.Now().UTC().Add(ttl),
			CreatedAt: time.Now().UTC(),
		})
		bootstrapCancel()
		if err != nil {
			_ = dispatcher.Close()
			_ = db.Close()
			return nil, nil, fmt.Errorf("bootstrap session: %w", err)
		}
	}

	invoiceClient := invoicing.NewClient(cfg.InvoiceBaseURL, cfg.InvoiceAPIKey, 0)

	handler := httpapi.NewHandler(authService, mutationService, auditService, schemaService, invoiceClient)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}
