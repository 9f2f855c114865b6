package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tourhive/backoffice/internal/app"
)

func main() {
	cmd := &cli.Command{
		Name:  "backoffice",
		Usage: "Tour-operations back-office API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./backoffice.sqlite",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "invoice-base-url",
				Sources: cli.EnvVars("BACKOFFICE_INVOICE_BASE_URL"),
				Usage:   "Base URL of the external invoice/webhook service",
			},
			&cli.StringFlag{
				Name:    "invoice-api-key",
				Sources: cli.EnvVars("BACKOFFICE_INVOICE_API_KEY"),
				Usage:   "API key sent to the invoice service",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("BACKOFFICE_WEBHOOK_URL"),
				Usage:   "Change-event webhook target URL (log-only when unset)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("BACKOFFICE_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.StringFlag{
				Name:    "bootstrap-session-token",
				Sources: cli.EnvVars("BACKOFFICE_BOOTSTRAP_SESSION_TOKEN"),
				Usage:   "Optional session token to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-user-id",
				Value:   "bootstrap",
				Sources: cli.EnvVars("BACKOFFICE_BOOTSTRAP_USER_ID"),
				Usage:   "User id for the bootstrap session",
			},
			&cli.StringFlag{
				Name:    "bootstrap-email",
				Value:   "ops@localhost",
				Sources: cli.EnvVars("BACKOFFICE_BOOTSTRAP_EMAIL"),
				Usage:   "Email for the bootstrap session",
			},
			&cli.StringFlag{
				Name:    "bootstrap-role",
				Value:   "admin",
				Sources: cli.EnvVars("BACKOFFICE_BOOTSTRAP_ROLE"),
				Usage:   "Role for the bootstrap session",
			},
			&cli.DurationFlag{
				Name:    "session-ttl",
				Value:   24 * time.Hour,
				Sources: cli.EnvVars("BACKOFFICE_SESSION_TTL"),
				Usage:   "Lifetime of the bootstrap session",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:            c.String("addr"),
				DBPath:          c.String("db-path"),
				InvoiceBaseURL:  c.String("invoice-base-url"),
				InvoiceAPIKey:   c.String("invoice-api-key"),
				WebhookURL:      c.String("webhook-url"),
				WebhookSecret:   c.String("webhook-secret"),
				BootstrapToken:  c.String("bootstrap-session-token"),
				BootstrapUserID: c.String("bootstrap-user-id"),
				BootstrapEmail:  c.String("bootstrap-email"),
				BootstrapRole:   c.String("bootstrap-role"),
				SessionTTL:      c.Duration("session-ttl"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
