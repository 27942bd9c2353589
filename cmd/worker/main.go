package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"report-backend/cmd"
	"report-backend/internal/database"
	"report-backend/internal/messaging"
	"report-backend/internal/reports"
	"report-backend/internal/storage"
	"report-backend/internal/transport"
	"report-backend/internal/worker"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	DatabaseURL       string        `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL       string        `env:"RABBITMQ_URL,notEmpty,required"`
	S3EndpointURL     string        `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	ImageExtensions   []string      `env:"IMAGE_EXTENSIONS" envSeparator:","`
	TextExtensions    []string      `env:"TEXT_EXTENSIONS" envSeparator:","`
	ClassifierConfig  string        `env:"CLASSIFIER_CONFIG"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
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
		log.Fatalf("Worker: Failed to create S3 client: %v", err)
	}

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

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

	processor := worker.NewTaskProcessor(pipeline, nil, reciever)

	go processor.Start()

	slog.Info("worker started, waiting for upload events")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutdown signal received")
	processor.Stop()

	log.Println("Worker process stopped.")
}
