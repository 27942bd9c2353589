package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"report-backend/cmd"
	"report-backend/internal/api"
	"report-backend/internal/dynamo"
	"report-backend/internal/messaging"
	"report-backend/internal/reports"
	"report-backend/internal/storage"
	"report-backend/internal/transport"
	pkgapi "report-backend/pkg/api"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/caarlos0/env/v11"
)

type LambdaConfig struct {
	ReportTableName      string   `env:"REPORT_TABLE_NAME" envDefault:"Reports"`
	ConnectionTableName  string   `env:"CONNECTION_TABLE_NAME,notEmpty,required"`
	WebSocketAPIEndpoint string   `env:"WEBSOCKET_API_ENDPOINT,notEmpty,required"`
	S3Region             string   `env:"AWS_REGION"`
	ImageExtensions      []string `env:"IMAGE_EXTENSIONS" envSeparator:","`
	TextExtensions       []string `env:"TEXT_EXTENSIONS" envSeparator:","`
	ClassifierConfig     string   `env:"CLASSIFIER_CONFIG"`
	LogLevel             string   `env:"LOG_LEVEL" envDefault:"info"`
}

type eventHandler func(ctx context.Context, event events.S3Event) (pkgapi.EventResponse, error)

// newHandler processes every record of an S3 trigger. The response is always
// computed; an error is returned as well when a record failed so the trigger
// is retried.
func newHandler(pipeline *reports.Pipeline) eventHandler {
	return func(ctx context.Context, event events.S3Event) (pkgapi.EventResponse, error) {
		uploads := messaging.UploadEvents(event)
		slog.Info("received s3 event", "records", len(uploads))

		items := pipeline.HandleEvents(ctx, uploads)

		res := api.NewEventResponse(items)
		if err := reports.BatchError(items); err != nil {
			slog.Error("error processing s3 event", "status_code", res.StatusCode, "error", err)
			return res, err
		}
		return res, nil
	}
}

func main() {
	var cfg LambdaConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	cmd.ConfigureLogging(os.Stderr, cfg.LogLevel)

	awsCfg, err := aws_config.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("failed to load aws config: %v", err)
	}

	s3, err := storage.NewS3ObjectStore(storage.S3ClientConfig{Region: cfg.S3Region})
	if err != nil {
		log.Fatalf("failed to create s3 client: %v", err)
	}

	ddb := dynamodb.NewFromConfig(awsCfg)

	classifier, err := cmd.LoadClassifier(cfg.ClassifierConfig, cfg.ImageExtensions, cfg.TextExtensions)
	if err != nil {
		log.Fatalf("Failed to load classifier config: %v", err)
	}

	pipeline := reports.NewPipeline(
		classifier,
		s3,
		reports.NewEngine(dynamo.NewReportStore(ddb, cfg.ReportTableName)),
		reports.NewNotifier(
			dynamo.NewConnectionDirectory(ddb, cfg.ConnectionTableName),
			transport.NewWebSocketTransport(awsCfg, cfg.WebSocketAPIEndpoint),
		),
	)

	lambda.Start(newHandler(pipeline))
}
