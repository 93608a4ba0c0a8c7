package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/agencyhq/agencyapi/internal/auth"
	"github.com/agencyhq/agencyapi/internal/clerk"
	"github.com/agencyhq/agencyapi/internal/db/bunx"
	"github.com/agencyhq/agencyapi/internal/repository"
	"github.com/agencyhq/agencyapi/internal/server"
	"github.com/agencyhq/agencyapi/internal/services/identity"
	"github.com/agencyhq/agencyapi/internal/services/org"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Agency API server",
	Long:  `Starts the HTTP server exposing the authenticated REST endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Clerk.RequireKeys(); err != nil {
			return err
		}

		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		// Initialize repositories
		userRepo := repository.NewBunUserRepository(db)
		orgRepo := repository.NewBunOrganizationRepository(db)
		membershipRepo := repository.NewBunMembershipRepository(db)

		// Initialize the provider client and services
		clerkClient := clerk.NewClient(cfg.Clerk)
		verifier := auth.NewVerifier(clerkClient, cfg.Clerk.SessionCookie)
		identityService := identity.NewService(userRepo, clerkClient)
		orgService := org.NewService(orgRepo, membershipRepo)

		healthHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"status":"ok"}`)
		}

		r, err := server.NewRouter(server.RouterOptions{
			Verifier:      verifier,
			Identity:      identityService,
			Org:           orgService,
			LoginURL:      cfg.LoginURL,
			HealthHandler: healthHandler,
		})
		if err != nil {
			return fmt.Errorf("assemble router: %w", err)
		}

		// Wrap router with h2c for HTTP/2 cleartext support behind proxies
		h2cHandler := h2c.NewHandler(r, &http2.Server{})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      h2cHandler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
