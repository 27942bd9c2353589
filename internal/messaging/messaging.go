package messaging

import (
	"context"
	"net/url"
	"report-backend/internal/reports"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

const (
	UploadEventQueue = "upload_events"
	RetryDelay       = 5 * time.Second
	MaxConnectRetry  = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// UploadEventPayload is the S3 notification document that announced one or
// more uploads. It is published unchanged so a worker can treat queued events
// and bucket notifications alike.
type UploadEventPayload = events.S3Event

type Publisher interface {
	PublishUploadEvent(ctx context.Context, payload UploadEventPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}

// NewUploadEvent builds the notification S3 would send for a single object
// created in bucket. The key is URL encoded the way S3 encodes it.
func NewUploadEvent(bucket, key string, size int64) UploadEventPayload {
	return events.S3Event{
		Records: []events.S3EventRecord{
			{
				EventVersion: "2.1",
				EventSource:  "aws:s3",
				EventTime:    time.Now().UTC(),
				EventName:    "ObjectCreated:Put",
				S3: events.S3Entity{
					SchemaVersion: "1.0",
					Bucket:        events.S3Bucket{Name: bucket, Arn: "arn:aws:s3:::" + bucket},
					Object:        events.S3Object{Key: url.QueryEscape(key), URLDecodedKey: key, Size: size},
				},
			},
		},
	}
}

// UploadEvents lists the uploads announced by payload in record order. Keys are
// taken URL decoded.
func UploadEvents(payload UploadEventPayload) []reports.UploadEvent {
	uploads := make([]reports.UploadEvent, 0, len(payload.Records))
	for _, record := range payload.Records {
		key := record.S3.Object.URLDecodedKey
		if key == "" {
			if decoded, err := url.QueryUnescape(record.S3.Object.Key); err == nil {
				key = decoded
			} else {
				key = record.S3.Object.Key
			}
		}
		uploads = append(uploads, reports.UploadEvent{Bucket: record.S3.Bucket.Name, Key: key})
	}
	return uploads
}
