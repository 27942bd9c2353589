package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"report-backend/internal/utils"
	"strings"
)

type ObjectSource interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	ObjectURL(bucket, key string) string
}

type UploadEvent struct {
	Bucket string
	Key    string
}

type Result struct {
	Event      UploadEvent
	Kind       Kind
	Transition Transition
	Notified   NotifyOutcome
}

func (r Result) Rejected() bool {
	return r.Transition.Outcome == OutcomeRejected
}

type Pipeline struct {
	classifier *Classifier
	objects    ObjectSource
	engine     *Engine
	notifier   *Notifier
}

func NewPipeline(classifier *Classifier, objects ObjectSource, engine *Engine, notifier *Notifier) *Pipeline {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &Pipeline{
		classifier: classifier,
		objects:    objects,
		engine:     engine,
		notifier:   notifier,
	}
}

// HandleEvent runs one upload event through classification, reconciliation and
// notification. Errors wrap ErrFetch or ErrStore; in both cases the report is
// left unchanged.
func (p *Pipeline) HandleEvent(ctx context.Context, event UploadEvent) (Result, error) {
	reportId, kind := p.classifier.Classify(event.Key)
	result := Result{Event: event, Kind: kind}

	slog.Info("processing upload", "bucket", event.Bucket, "key", event.Key, "report_id", reportId, "kind", kind)

	var value string
	switch kind {
	case KindUnsupported:
		result.Transition = Transition{ReportId: reportId, Outcome: OutcomeRejected}
		slog.Warn("no valid update for upload", "bucket", event.Bucket, "key", event.Key)
		return result, nil

	case KindImage:
		value = p.objects.ObjectURL(event.Bucket, event.Key)

	case KindText:
		data, err := p.objects.GetObject(ctx, event.Bucket, event.Key)
		if err != nil {
			slog.Error("error reading text upload", "bucket", event.Bucket, "key", event.Key, "error", err)
			return result, fmt.Errorf("%w: error reading s3://%s/%s: %w", ErrFetch, event.Bucket, event.Key, err)
		}
		value = decodeText(data)
	}

	transition, err := p.engine.Reconcile(ctx, reportId, kind, value)
	if err != nil {
		return result, err
	}
	result.Transition = transition

	if transition.Notifiable() && p.notifier != nil {
		result.Notified = p.notifier.Notify(ctx, transition)
	}

	return result, nil
}

const utf8BOM = "\ufeff"

func decodeText(data []byte) string {
	text := strings.ToValidUTF8(string(data), "\uFFFD")
	return strings.TrimPrefix(text, utf8BOM)
}

const defaultBatchWorkers = 4

type BatchItem struct {
	Result Result
	Err    error
}

// HandleEvents processes each upload independently and returns the items in
// input order. A failed upload does not stop the others.
func (p *Pipeline) HandleEvents(ctx context.Context, events []UploadEvent) []BatchItem {
	completed := utils.RunInPool(events, func(event UploadEvent) (Result, error) {
		return p.HandleEvent(ctx, event)
	}, defaultBatchWorkers)

	items := make([]BatchItem, len(events))
	for _, task := range utils.CollectInOrder(completed, len(events)) {
		items[task.Index] = BatchItem{Result: task.Result, Err: task.Error}
	}
	return items
}

// BatchError joins the errors of every failed item, or returns nil.
func BatchError(items []BatchItem) error {
	var errs []error
	for _, item := range items {
		if item.Err != nil {
			errs = append(errs, item.Err)
		}
	}
	return errors.Join(errs...)
}
