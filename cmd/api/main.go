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

	"docket.org/internal/access"
	"docket.org/internal/audit"
	"docket.org/internal/auth"
	"docket.org/internal/blob"
	"docket.org/internal/httpapi"
	"docket.org/internal/obs"
	"docket.org/internal/registry"
	memstore "docket.org/internal/store/memory"
	"docket.org/internal/store/pg"
)

// Overridden at build time via -ldflags.
var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Persistence: Postgres when a DSN is set, in-memory otherwise.
	// The in-memory fallback is for local development only.
	var (
		db       *sql.DB
		accounts auth.IdentityService
		profiles auth.ProfileStore
		letters  registry.LetterStore
		grants   registry.RecipientStore
		auditLog audit.Store
	)
	if dsn := os.Getenv("DOCKET_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		db = store.DB()
		accounts = store.Accounts()
		profiles = store.Profiles()
		letters = store.Letters()
		grants = store.Recipients()
		auditLog = store.Audit()
	} else {
		log.Println("DOCKET_PG_DSN not set, using in-memory store")
		store := memstore.New()
		accounts = store.Accounts
		profiles = store.Profiles
		letters = store.Letters
		grants = store.Recipients
		auditLog = store.Audit
	}

	// Blob storage: S3 when a bucket is configured, in-memory otherwise.
	var blobs blob.Store
	bucket := os.Getenv("DOCKET_S3_BUCKET")
	if bucket != "" {
		s3Store, err := blob.NewS3Store(context.Background(), blob.S3Config{
			Bucket:    bucket,
			Region:    os.Getenv("DOCKET_S3_REGION"),
			Endpoint:  os.Getenv("DOCKET_S3_ENDPOINT"),
			AccessKey: os.Getenv("DOCKET_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("DOCKET_S3_SECRET_KEY"),
		})
		if err != nil {
			log.Fatalf("open s3: %v", err)
		}
		blobs = s3Store
	} else {
		log.Println("DOCKET_S3_BUCKET not set, using in-memory blob store")
		blobs = blob.NewMemoryStore()
		bucket = "local"
	}

	recorder, err := audit.NewRecorder(auditLog)
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}
	users, err := auth.NewService(accounts, profiles, recorder)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	resolver, err := auth.NewResolver(profiles)
	if err != nil {
		log.Fatalf("auth resolver: %v", err)
	}
	regOpts := []registry.ServiceOption{registry.WithBucket(bucket)}
	if prefix := os.Getenv("DOCKET_REF_PREFIX"); prefix != "" {
		regOpts = append(regOpts, registry.WithRefPrefix(prefix))
	}
	reg, err := registry.NewService(letters, grants, blobs, recorder, access.Policy{}, regOpts...)
	if err != nil {
		log.Fatalf("registry service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, users, resolver, reg, recorder)

	addr := os.Getenv("DOCKET_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting docket-api %s on %s", version, srv.Addr)

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
	log.Println("Stopped")
}
