package api

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"report-backend/internal/database"
	"report-backend/internal/messaging"
	"report-backend/internal/reports"
	"report-backend/internal/storage"
	"report-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

const maxUploadBytes = 32 << 20

type BackendService struct {
	reports       *database.ReportStore
	subscriptions *database.SubscriptionDirectory
	storage       storage.ObjectStore
	publisher     messaging.Publisher
	pipeline      *reports.Pipeline
	classifier    *reports.Classifier
	uploadBucket  string
}

func NewBackendService(db *gorm.DB, storage storage.ObjectStore, publisher messaging.Publisher, pipeline *reports.Pipeline, classifier *reports.Classifier, uploadBucket string) *BackendService {
	if classifier == nil {
		classifier = reports.DefaultClassifier()
	}
	return &BackendService{
		reports:       database.NewReportStore(db),
		subscriptions: database.NewSubscriptionDirectory(db),
		storage:       storage,
		publisher:     publisher,
		pipeline:      pipeline,
		classifier:    classifier,
		uploadBucket:  uploadBucket,
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/reports", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListReports))
		r.Get("/{report_id}", RestHandler(s.GetReport))
		r.Put("/{report_id}/subscription", RestHandler(s.Subscribe))
		r.Delete("/{report_id}/subscription", RestHandler(s.Unsubscribe))
	})

	r.Post("/uploads", RestHandler(s.Upload))
	r.Post("/events", s.ProcessEvent)
}

func convertReport(report reports.Report) api.Report {
	return api.Report{
		ReportId:    report.ReportId,
		ImageRef:    report.ImageRef,
		Description: report.Description,
		Status:      string(report.Status),
		LastUpdated: report.LastUpdated,
	}
}

func (s *BackendService) ListReports(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListReportsParams](r)
	if err != nil {
		return nil, err
	}

	if params.Limit < 0 || params.Offset < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "limit and offset must not be negative")
	}

	switch reports.Status(params.Status) {
	case reports.StatusNone, reports.StatusIncomplete, reports.StatusComplete:
	default:
		return nil, CodedErrorf(http.StatusBadRequest, "invalid status '%s': must be %s or %s", params.Status, reports.StatusIncomplete, reports.StatusComplete)
	}

	list, err := s.reports.ListReports(r.Context(), database.ListReportsParams{
		Status: params.Status,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing reports")
	}

	results := make([]api.Report, 0, len(list))
	for _, report := range list {
		results = append(results, convertReport(report))
	}
	return results, nil
}

func (s *BackendService) GetReport(r *http.Request) (any, error) {
	reportId, err := URLParam(r, "report_id")
	if err != nil {
		return nil, err
	}

	report, err := s.reports.GetReport(r.Context(), reportId)
	if err != nil {
		if errors.Is(err, reports.ErrReportNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "report %s not found", reportId)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving report")
	}

	return convertReport(report), nil
}

func (s *BackendService) Subscribe(r *http.Request) (any, error) {
	reportId, err := URLParam(r, "report_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.SubscriptionRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Handle == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "handle is required")
	}

	if err := s.subscriptions.Register(r.Context(), reportId, req.Handle); err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}

	return nil, nil
}

func (s *BackendService) Unsubscribe(r *http.Request) (any, error) {
	reportId, err := URLParam(r, "report_id")
	if err != nil {
		return nil, err
	}

	if err := s.subscriptions.Remove(r.Context(), reportId); err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}

	return nil, nil
}

func (s *BackendService) Upload(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.Error("error parsing multipart form", "error", err)
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "missing 'file' form field")
	}
	defer file.Close()

	key := path.Base(header.Filename)
	reportId, kind := s.classifier.Classify(key)
	if kind == reports.KindUnsupported {
		return nil, CodedErrorf(http.StatusBadRequest, "unsupported upload '%s': expected an image or text file", header.Filename)
	}

	ctx := r.Context()

	if err := s.storage.PutObject(ctx, s.uploadBucket, key, file); err != nil {
		slog.Error("error storing upload", "bucket", s.uploadBucket, "key", key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error storing upload")
	}

	if err := s.publisher.PublishUploadEvent(ctx, messaging.NewUploadEvent(s.uploadBucket, key, header.Size)); err != nil {
		slog.Error("error publishing upload event", "bucket", s.uploadBucket, "key", key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error queueing upload")
	}

	slog.Info("accepted upload", "bucket", s.uploadBucket, "key", key, "report_id", reportId, "kind", kind)

	return api.UploadResponse{
		Bucket:   s.uploadBucket,
		Key:      key,
		ReportId: reportId,
		Kind:     kind.String(),
	}, nil
}

// ProcessEvent runs an S3 event through the pipeline synchronously and answers
// with the computed event response.
func (s *BackendService) ProcessEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := ParseRequest[messaging.UploadEventPayload](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items := s.pipeline.HandleEvents(r.Context(), messaging.UploadEvents(payload))
	WriteEventResponse(w, NewEventResponse(items))
}
