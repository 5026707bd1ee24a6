package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"tendertrack/db"
	"tendertrack/db/migrations"
	"tendertrack/internal/auth"
	"tendertrack/internal/blob"
	"tendertrack/internal/handlers"
	"tendertrack/internal/tracking"
)

func main() {
	godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Cannot init logger: %v", err)
	}
	defer logger.Sync()

	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		logger.Fatal("POSTGRES_CONN env variable is not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET env variable is not set")
	}

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		logger.Fatal("Cannot connect to DB", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		logger.Fatal("Cannot run migrations", zap.Error(err))
	}

	blobs, err := blob.NewMinioStore(
		os.Getenv("MINIO_ENDPOINT"),
		os.Getenv("MINIO_ACCESS_KEY"),
		os.Getenv("MINIO_SECRET_KEY"),
		envOr("MINIO_BUCKET", "tender-documents"),
		os.Getenv("MINIO_USE_SSL") == "true",
		logger,
	)
	if err != nil {
		logger.Fatal("Cannot connect to object store", zap.Error(err))
	}
	if err := blobs.EnsureBucket(context.Background()); err != nil {
		logger.Fatal("Cannot prepare bucket", zap.Error(err))
	}

	store := db.NewStorage(dbConn)
	tracker := tracking.NewService(tracking.SQLStore{Storage: store}, blobs, logger)
	h := handlers.NewHandler(store, tracker, blobs, []byte(secret), logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(handlers.RequestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Post("/auth/login", h.LoginHandler)
		r.Post("/auth/register", h.RegisterHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate([]byte(secret)))

			r.Route("/tenders", func(r chi.Router) {
				r.Get("/search", h.SearchTendersHandler)
				r.Get("/districts", h.GetDistrictsHandler)
				r.Get("/blocks", h.GetBlocksHandler)
				r.Get("/{tenderId}", h.GetTenderHandler)
				r.Get("/{tenderId}/export", h.ExportTenderHandler)
			})

			r.Route("/consignees", func(r chi.Router) {
				r.Get("/", h.GetConsigneesHandler)
				r.Get("/{id}/details", h.GetConsigneeDetailsHandler)
				r.Get("/{id}/files/{type}", h.GetConsigneeFilesHandler)
				r.With(auth.Authorize("logistics", "admin")).Patch("/{id}", h.UpdateConsigneeHandler)
				r.With(auth.Authorize("logistics", "admin")).Patch("/{id}/accessories", h.UpdateAccessoriesHandler)
			})

			r.Route("/upload", func(r chi.Router) {
				r.With(auth.Authorize("logistics", "admin")).Post("/logistics", h.UploadLogisticsHandler)
				r.With(auth.Authorize("challan", "admin")).Post("/challan", h.UploadChallanHandler)
				r.With(auth.Authorize("installation", "admin")).Post("/installation", h.UploadInstallationHandler)
				r.With(auth.Authorize("invoice", "admin")).Post("/invoice", h.UploadInvoiceHandler)
				r.With(auth.Authorize("admin", "logistics", "challan", "installation", "invoice")).
					Delete("/{type}/file", h.DeleteFileHandler)
			})

			r.Get("/files", h.DownloadFileHandler)
			r.With(auth.Authorize("admin")).Post("/database/seed", h.SeedDatabaseHandler)
		})
	})

	serverAddr := envOr("SERVER_ADDRESS", "0.0.0.0:8080")
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
