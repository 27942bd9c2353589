package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"report-backend/internal/messaging"
	"report-backend/internal/reports"
)

type TaskProcessor struct {
	pipeline  *reports.Pipeline
	publisher messaging.Publisher
	reciever  messaging.Reciever
}

func NewTaskProcessor(pipeline *reports.Pipeline, publisher messaging.Publisher, reciever messaging.Reciever) *TaskProcessor {
	return &TaskProcessor{
		pipeline:  pipeline,
		publisher: publisher,
		reciever:  reciever,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	if proc.publisher != nil {
		proc.publisher.Close()
	}
	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {

	case messaging.UploadEventQueue:
		var payload messaging.UploadEventPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling upload event", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processUploadEvent(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

// processUploadEvent fails if any record could not be fetched or stored. A
// redelivery replays every record, which is safe since applying an upload
// twice leaves the report unchanged. Rejected uploads and failed notifications
// are final.
func (proc *TaskProcessor) processUploadEvent(ctx context.Context, payload messaging.UploadEventPayload) error {
	uploads := messaging.UploadEvents(payload)
	if len(uploads) == 0 {
		slog.Warn("upload event has no records")
		return nil
	}

	items := proc.pipeline.HandleEvents(ctx, uploads)

	for _, item := range items {
		if item.Err != nil {
			continue
		}
		slog.Info("processed upload", "bucket", item.Result.Event.Bucket, "key", item.Result.Event.Key,
			"rejected", item.Result.Rejected(), "status", item.Result.Transition.Current, "notified", item.Result.Notified)
	}

	return reports.BatchError(items)
}
