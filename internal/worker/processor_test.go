package worker_test

import (
	"bytes"
	"context"
	"encoding/json"
	"report-backend/internal/database"
	"report-backend/internal/messaging"
	"report-backend/internal/reports"
	"report-backend/internal/storage"
	"report-backend/internal/worker"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedTask struct {
	queue   string
	payload []byte
	acks    int
	nacks   int
	rejects int
}

func (t *recordedTask) Type() string    { return t.queue }
func (t *recordedTask) Payload() []byte { return t.payload }
func (t *recordedTask) Ack() error      { t.acks++; return nil }
func (t *recordedTask) Nack() error     { t.nacks++; return nil }
func (t *recordedTask) Reject() error   { t.rejects++; return nil }

func uploadTask(t *testing.T, bucket, key string) *recordedTask {
	payload, err := json.Marshal(messaging.NewUploadEvent(bucket, key, 0))
	require.NoError(t, err)
	return &recordedTask{queue: messaging.UploadEventQueue, payload: payload}
}

type sentMessages struct {
	messages []reports.StatusMessage
}

func (s *sentMessages) Deliver(ctx context.Context, handle string, msg reports.StatusMessage) error {
	s.messages = append(s.messages, msg)
	return nil
}

type fixture struct {
	db        *gorm.DB
	store     *storage.LocalObjectStore
	sent      *sentMessages
	processor *worker.TaskProcessor
}

func newFixture(t *testing.T) *fixture {
	db, err := database.NewSQLiteDatabase("file::memory:")
	require.NoError(t, err)

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateBucket(context.Background(), "uploads"))

	sent := &sentMessages{}
	pipeline := reports.NewPipeline(
		reports.DefaultClassifier(),
		store,
		reports.NewEngine(database.NewReportStore(db)),
		reports.NewNotifier(database.NewSubscriptionDirectory(db), sent),
	)

	queue := messaging.NewInMemoryQueue()
	return &fixture{db: db, store: store, sent: sent, processor: worker.NewTaskProcessor(pipeline, queue, queue)}
}

func TestProcessUploadEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, database.NewSubscriptionDirectory(f.db).Register(ctx, "report42", "http://client/hook"))
	require.NoError(t, f.store.PutObject(ctx, "uploads", "report42.jpg", bytes.NewReader([]byte{0xff, 0xd8})))
	require.NoError(t, f.store.PutObject(ctx, "uploads", "report42.txt", bytes.NewReader([]byte("ok"))))

	image := uploadTask(t, "uploads", "report42.jpg")
	f.processor.ProcessTask(image)
	assert.Equal(t, 1, image.acks)
	assert.Empty(t, f.sent.messages)

	text := uploadTask(t, "uploads", "report42.txt")
	f.processor.ProcessTask(text)
	assert.Equal(t, 1, text.acks)

	report, err := database.NewReportStore(f.db).GetReport(ctx, "report42")
	require.NoError(t, err)
	assert.Equal(t, reports.StatusComplete, report.Status)
	assert.Equal(t, "ok", report.Description)

	require.Len(t, f.sent.messages, 1)
	assert.Equal(t, "report42", f.sent.messages[0].ReportId)
	assert.Equal(t, reports.StatusComplete, f.sent.messages[0].Status)
}

func TestProcessRejectedUploadIsAcked(t *testing.T) {
	f := newFixture(t)

	task := uploadTask(t, "uploads", "report99.pdf")
	f.processor.ProcessTask(task)

	assert.Equal(t, 1, task.acks)
	_, err := database.NewReportStore(f.db).GetReport(context.Background(), "report99")
	assert.ErrorIs(t, err, reports.ErrReportNotFound)
}

func TestProcessMissingObjectIsNacked(t *testing.T) {
	f := newFixture(t)

	task := uploadTask(t, "uploads", "report42.txt")
	f.processor.ProcessTask(task)

	assert.Equal(t, 0, task.acks)
	assert.Equal(t, 1, task.nacks)
}

func TestProcessMalformedTasks(t *testing.T) {
	f := newFixture(t)

	malformed := &recordedTask{queue: messaging.UploadEventQueue, payload: []byte("{not json")}
	f.processor.ProcessTask(malformed)
	assert.Equal(t, 1, malformed.rejects)

	unknown := &recordedTask{queue: "other_queue", payload: []byte("{}")}
	f.processor.ProcessTask(unknown)
	assert.Equal(t, 1, unknown.rejects)

	empty := &recordedTask{queue: messaging.UploadEventQueue, payload: []byte(`{"Records":[]}`)}
	f.processor.ProcessTask(empty)
	assert.Equal(t, 1, empty.acks)
}

func TestStartDrainsQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	queue := messaging.NewInMemoryQueue()

	db, err := database.NewSQLiteDatabase("file::memory:")
	require.NoError(t, err)
	pipeline := reports.NewPipeline(nil, f.store, reports.NewEngine(database.NewReportStore(db)), nil)
	processor := worker.NewTaskProcessor(pipeline, queue, queue)

	require.NoError(t, f.store.PutObject(ctx, "uploads", "a.txt", bytes.NewReader([]byte("first"))))
	require.NoError(t, queue.PublishUploadEvent(ctx, messaging.NewUploadEvent("uploads", "a.txt", 5)))
	require.NoError(t, queue.PublishUploadEvent(ctx, messaging.NewUploadEvent("uploads", "a.png", 5)))

	done := make(chan struct{})
	go func() {
		processor.Start()
		close(done)
	}()
	processor.Stop()
	<-done

	report, err := database.NewReportStore(db).GetReport(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, reports.StatusComplete, report.Status)
	assert.Equal(t, "first", report.Description)
}
