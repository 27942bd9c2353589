package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"report-backend/cmd"
	"report-backend/internal/api"
	"report-backend/internal/database"
	"report-backend/internal/messaging"
	"report-backend/internal/reports"
	"report-backend/internal/storage"
	"report-backend/internal/transport"
	"report-backend/internal/worker"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

type Config struct {
	Root             string        `env:"ROOT" envDefault:"./report-backend"`
	Port             int           `env:"PORT" envDefault:"3001"`
	UploadBucketName string        `env:"UPLOAD_BUCKET_NAME" envDefault:"uploads"`
	WebhookTimeout   time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	ImageExtensions  []string      `env:"IMAGE_EXTENSIONS" envSeparator:","`
	TextExtensions   []string      `env:"TEXT_EXTENSIONS" envSeparator:","`
	ClassifierConfig string        `env:"CLASSIFIER_CONFIG"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
}

func createServer(db *gorm.DB, storage storage.ObjectStore, queue messaging.Publisher, pipeline *reports.Pipeline, classifier *reports.Classifier, uploadBucket string, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(db, storage, queue, pipeline, classifier, uploadBucket)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	logOutput := io.MultiWriter(f, os.Stderr)
	log.SetOutput(logOutput)
	cmd.ConfigureLogging(logOutput, cfg.LogLevel)

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "upload_bucket", cfg.UploadBucketName)

	db, err := database.NewSQLiteDatabase(filepath.Join(cfg.Root, "db", "reports.db"))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	storage, err := storage.NewLocalObjectStore(filepath.Join(cfg.Root, "storage"))
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	if err := storage.CreateBucket(context.Background(), cfg.UploadBucketName); err != nil {
		log.Fatalf("Failed to create upload bucket: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	classifier, err := cmd.LoadClassifier(cfg.ClassifierConfig, cfg.ImageExtensions, cfg.TextExtensions)
	if err != nil {
		log.Fatalf("Failed to load classifier config: %v", err)
	}

	pipeline := reports.NewPipeline(
		classifier,
		storage,
		reports.NewEngine(database.NewReportStore(db)),
		reports.NewNotifier(database.NewSubscriptionDirectory(db), transport.NewWebhookTransport(cfg.WebhookTimeout)),
	)

	processor := worker.NewTaskProcessor(pipeline, queue, queue)

	server := createServer(db, storage, queue, pipeline, classifier, cfg.UploadBucketName, cfg.Port)

	slog.Info("starting worker")
	go processor.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		processor.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
