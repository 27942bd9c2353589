//go:build integration
// +build integration

package integrationtests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"report-backend/internal/api"
	"report-backend/internal/database"
	"report-backend/internal/reports"
	"report-backend/internal/transport"
	"report-backend/internal/worker"
	pkgapi "report-backend/pkg/api"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookRecorder struct {
	mu       sync.Mutex
	messages []pkgapi.ReconcileBody
}

func (rec *webhookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg pkgapi.ReconcileBody
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.mu.Lock()
	rec.messages = append(rec.messages, msg)
	rec.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (rec *webhookRecorder) received() []pkgapi.ReconcileBody {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]pkgapi.ReconcileBody(nil), rec.messages...)
}

func waitForStatus(t *testing.T, router http.Handler, reportId string, status reports.Status) pkgapi.Report {
	for i := 0; i < 40; i++ {
		var report pkgapi.Report
		time.Sleep(250 * time.Millisecond)
		if err := httpRequest(router, http.MethodGet, "/reports/"+reportId, nil, &report); err != nil {
			continue
		}
		if report.Status == string(status) {
			return report
		}
	}

	t.Fatalf("timeout reached before report %s became %s", reportId, status)
	return pkgapi.Report{}
}

func TestReportWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)
	db := createDB(t)
	publisher, receiver := setupRabbitMQContainer(t, ctx)

	recorder := &webhookRecorder{}
	subscriber := httptest.NewServer(recorder)
	defer subscriber.Close()

	pipeline := reports.NewPipeline(
		nil,
		objectStore,
		reports.NewEngine(database.NewReportStore(db)),
		reports.NewNotifier(database.NewSubscriptionDirectory(db), transport.NewWebhookTransport(5*time.Second)),
	)

	service := api.NewBackendService(db, objectStore, publisher, pipeline, nil, bucketName)
	router := chi.NewRouter()
	service.AddRoutes(router)

	processor := worker.NewTaskProcessor(pipeline, publisher, receiver)
	go processor.Start()
	defer processor.Stop()

	require.NoError(t, httpRequest(router, http.MethodPut, "/reports/report42/subscription", pkgapi.SubscriptionRequest{Handle: subscriber.URL}, nil))

	var upload pkgapi.UploadResponse
	require.NoError(t, uploadFile(router, "report42.jpg", []byte{0xff, 0xd8, 0xff}, &upload))
	assert.Equal(t, "report42", upload.ReportId)
	assert.Equal(t, "image", upload.Kind)

	report := waitForStatus(t, router, "report42", reports.StatusIncomplete)
	assert.Equal(t, objectStore.ObjectURL(bucketName, "report42.jpg"), report.ImageRef)
	assert.Empty(t, report.Description)
	assert.Empty(t, recorder.received())

	require.NoError(t, uploadFile(router, "report42.txt", []byte("ok"), &upload))
	assert.Equal(t, "text", upload.Kind)

	report = waitForStatus(t, router, "report42", reports.StatusComplete)
	assert.Equal(t, "ok", report.Description)
	assert.Equal(t, objectStore.ObjectURL(bucketName, "report42.jpg"), report.ImageRef)

	require.Eventually(t, func() bool { return len(recorder.received()) == 1 }, 10*time.Second, 100*time.Millisecond)
	msg := recorder.received()[0]
	assert.Equal(t, "report42", msg.ReportId)
	assert.Equal(t, string(reports.StatusComplete), msg.Status)

	var complete []pkgapi.Report
	require.NoError(t, httpRequest(router, http.MethodGet, "/reports?status=Complete", nil, &complete))
	require.Len(t, complete, 1)
	assert.Equal(t, "report42", complete[0].ReportId)
}

func TestReportWorkflowUnsupportedUpload(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)
	db := createDB(t)
	publisher, receiver := setupRabbitMQContainer(t, ctx)
	defer receiver.Close()
	defer publisher.Close()

	pipeline := reports.NewPipeline(nil, objectStore, reports.NewEngine(database.NewReportStore(db)), nil)

	service := api.NewBackendService(db, objectStore, publisher, pipeline, nil, bucketName)
	router := chi.NewRouter()
	service.AddRoutes(router)

	err := uploadFile(router, "report99.pdf", []byte("%PDF-1.4"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	var list []pkgapi.Report
	require.NoError(t, httpRequest(router, http.MethodGet, "/reports", nil, &list))
	assert.Empty(t, list)
}
