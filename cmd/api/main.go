package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"report-backend/cmd"
	"report-backend/internal/api"
	"report-backend/internal/database"
	"report-backend/internal/messaging"
	"report-backend/internal/reports"
	"report-backend/internal/storage"
	"report-backend/internal/transport"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	DatabaseURL       string        `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL       string        `env:"RABBITMQ_URL,notEmpty,required"`
	S3EndpointURL     string        `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	UploadBucketName  string        `env:"UPLOAD_BUCKET_NAME" envDefault:"uploads"`
	APIPort           string        `env:"API_PORT" envDefault:"8001"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	ImageExtensions   []string      `env:"IMAGE_EXTENSIONS" envSeparator:","`
	TextExtensions    []string      `env:"TEXT_EXTENSIONS" envSeparator:","`
	ClassifierConfig  string        `env:"CLASSIFIER_CONFIG"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	cmd.ConfigureLogging(os.Stderr, cfg.LogLevel)

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s3, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	if err := s3.CreateBucket(context.Background(), cfg.UploadBucketName); err != nil {
		log.Fatalf("Failed to create upload bucket: %v", err)
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	classifier, err := cmd.LoadClassifier(cfg.ClassifierConfig, cfg.ImageExtensions, cfg.TextExtensions)
	if err != nil {
		log.Fatalf("Failed to load classifier config: %v", err)
	}

	pipeline := reports.NewPipeline(
		classifier,
		s3,
		reports.NewEngine(database.NewReportStore(db)),
		reports.NewNotifier(database.NewSubscriptionDirectory(db), transport.NewWebhookTransport(cfg.WebhookTimeout)),
	)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(db, s3, publisher, pipeline, classifier, cfg.UploadBucketName)

	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
