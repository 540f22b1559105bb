package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"opendesk.org/internal/auth"
	"opendesk.org/internal/httpapi"
	"opendesk.org/internal/obs"
	"opendesk.org/internal/ticket"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("OPENDESK_COMMIT"))

	secret := os.Getenv("OPENDESK_AUTH_SECRET")
	if secret == "" {
		log.Fatal("OPENDESK_AUTH_SECRET is required")
	}

	// Postgres when a DSN is configured, in-memory stores otherwise. The
	// in-memory mode exists for local development only.
	var (
		db          *sql.DB
		authStore   auth.Store
		ticketStore ticket.Store
	)
	if dsn := os.Getenv("OPENDESK_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		authStore = auth.NewPGStore(db)
		ticketStore = ticket.NewPGStore(db)
	} else {
		log.Println("OPENDESK_PG_DSN not set, using in-memory stores")
		authStore = auth.NewInMemoryStore()
		ticketStore = ticket.NewInMemoryStore()
	}

	sessions, err := auth.NewSessionService(authStore, auth.WithSigningSecret(secret), auth.WithIssuer("opendesk-api"))
	if err != nil {
		log.Fatalf("session service: %v", err)
	}
	rbac, err := auth.NewRBACService(authStore)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}
	tickets, err := ticket.NewService(ticketStore)
	if err != nil {
		log.Fatalf("ticket service: %v", err)
	}

	// Make sure every catalog key exists before any role references it.
	ensureCtx, cancelEnsure := context.WithTimeout(context.Background(), 10*time.Second)
	if err := rbac.EnsureCatalog(ensureCtx); err != nil {
		log.Fatalf("ensure permission catalog: %v", err)
	}
	cancelEnsure()

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, sessions, rbac, tickets)

	handler := api.Handler()
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.RateLimit(handler, 50, 25)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)

	addr := os.Getenv("OPENDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting opendesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
