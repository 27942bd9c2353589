package reports_test

import (
	"context"
	"errors"
	"fmt"
	"report-backend/internal/reports"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	store     *memoryStore
	directory *memoryDirectory
	transport *recordingTransport
	objects   *memoryObjects
	pipeline  *reports.Pipeline
}

func newPipelineFixture(subscribers map[string]string) *pipelineFixture {
	f := &pipelineFixture{
		store:     newMemoryStore(),
		directory: newMemoryDirectory(subscribers),
		transport: newRecordingTransport(),
		objects:   &memoryObjects{objects: make(map[string][]byte)},
	}
	f.pipeline = reports.NewPipeline(
		reports.DefaultClassifier(),
		f.objects,
		reports.NewEngine(f.store),
		reports.NewNotifier(f.directory, f.transport),
	)
	return f
}

func TestPipelineReport42Scenario(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(map[string]string{"report42": "conn-1"})
	f.objects.objects["uploads/report42.txt"] = []byte("ok")

	result, err := f.pipeline.HandleEvent(ctx, reports.UploadEvent{Bucket: "uploads", Key: "report42.jpg"})
	require.NoError(t, err)
	assert.Equal(t, reports.KindImage, result.Kind)
	assert.Equal(t, reports.StatusIncomplete, result.Transition.Current)
	assert.Equal(t, "https://uploads.s3.amazonaws.com/report42.jpg", result.Transition.Report.ImageRef)
	assert.Equal(t, reports.NotifySkipped, result.Notified)
	assert.Empty(t, f.transport.sent)

	result, err = f.pipeline.HandleEvent(ctx, reports.UploadEvent{Bucket: "uploads", Key: "report42.txt"})
	require.NoError(t, err)
	assert.Equal(t, reports.StatusComplete, result.Transition.Current)
	assert.Equal(t, "ok", result.Transition.Report.Description)
	assert.Equal(t, reports.NotifyDelivered, result.Notified)

	require.Len(t, f.transport.sent["conn-1"], 1)
	msg := f.transport.sent["conn-1"][0]
	assert.Equal(t, "report42", msg.ReportId)
	assert.Equal(t, reports.StatusComplete, msg.Status)
	assert.Equal(t, result.Transition.Report.LastUpdated, msg.LastUpdated)
}

func TestPipelineReport99Rejected(t *testing.T) {
	f := newPipelineFixture(nil)

	result, err := f.pipeline.HandleEvent(context.Background(), reports.UploadEvent{Bucket: "uploads", Key: "report99.pdf"})
	require.NoError(t, err)

	assert.True(t, result.Rejected())
	assert.Equal(t, reports.KindUnsupported, result.Kind)
	assert.Equal(t, 0, f.store.updates)
	assert.Equal(t, 0, f.objects.reads)
}

func TestPipelineFetchFailure(t *testing.T) {
	f := newPipelineFixture(nil)
	f.objects.err = errors.New("access denied")

	_, err := f.pipeline.HandleEvent(context.Background(), reports.UploadEvent{Bucket: "uploads", Key: "report42.txt"})
	require.Error(t, err)
	assert.ErrorIs(t, err, reports.ErrFetch)
	assert.Equal(t, 0, f.store.updates)
}

func TestPipelineStoreFailure(t *testing.T) {
	f := newPipelineFixture(nil)
	f.store.err = errors.New("throttled")

	_, err := f.pipeline.HandleEvent(context.Background(), reports.UploadEvent{Bucket: "uploads", Key: "report42.jpg"})
	require.Error(t, err)
	assert.ErrorIs(t, err, reports.ErrStore)
}

func TestPipelineDeliveryFailureDoesNotFailEvent(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(map[string]string{"report42": "conn-1"})
	f.transport.failures["conn-1"] = fmt.Errorf("410: %w", reports.ErrSubscriberGone)
	f.objects.objects["uploads/report42.txt"] = []byte("ok")

	_, err := f.pipeline.HandleEvent(ctx, reports.UploadEvent{Bucket: "uploads", Key: "report42.jpg"})
	require.NoError(t, err)

	result, err := f.pipeline.HandleEvent(ctx, reports.UploadEvent{Bucket: "uploads", Key: "report42.txt"})
	require.NoError(t, err)
	assert.Equal(t, reports.NotifyPruned, result.Notified)
	assert.Equal(t, reports.StatusComplete, result.Transition.Current)

	_, found, err := f.directory.Lookup(ctx, "report42")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPipelineDecodesText(t *testing.T) {
	f := newPipelineFixture(nil)
	f.objects.objects["uploads/r.txt"] = append([]byte("\xef\xbb\xbfhello "), 0xff)

	result, err := f.pipeline.HandleEvent(context.Background(), reports.UploadEvent{Bucket: "uploads", Key: "r.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello \uFFFD", result.Transition.Report.Description)
}

func TestPipelineHandleEventsIsolatesFailures(t *testing.T) {
	f := newPipelineFixture(map[string]string{"report42": "conn-1"})
	f.objects.objects["uploads/report42.txt"] = []byte("ok")

	items := f.pipeline.HandleEvents(context.Background(), []reports.UploadEvent{
		{Bucket: "uploads", Key: "report42.jpg"},
		{Bucket: "uploads", Key: "missing.txt"},
		{Bucket: "uploads", Key: "report99.pdf"},
		{Bucket: "uploads", Key: "report42.txt"},
	})
	require.Len(t, items, 4)

	assert.NoError(t, items[0].Err)
	assert.Equal(t, "report42.jpg", items[0].Result.Event.Key)
	assert.ErrorIs(t, items[1].Err, reports.ErrFetch)
	assert.NoError(t, items[2].Err)
	assert.True(t, items[2].Result.Rejected())
	assert.NoError(t, items[3].Err)

	report, err := f.store.GetReport(context.Background(), "report42")
	require.NoError(t, err)
	assert.Equal(t, reports.StatusComplete, report.Status)

	err = reports.BatchError(items)
	assert.ErrorIs(t, err, reports.ErrFetch)
	assert.Nil(t, reports.BatchError(items[:1]))
}
