package reports_test

import (
	"context"
	"fmt"
	"report-backend/internal/reports"
	"sync"
)

type memoryStore struct {
	mu      sync.Mutex
	reports map[string]reports.Report
	updates int
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[string]reports.Report)}
}

func (s *memoryStore) GetReport(ctx context.Context, reportId string) (reports.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[reportId]
	if !ok {
		return reports.Report{}, reports.ErrReportNotFound
	}
	return report, nil
}

func (s *memoryStore) UpdateReport(ctx context.Context, reportId string, mutate func(*reports.Report)) (reports.ReportUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates++
	if s.err != nil {
		return reports.ReportUpdate{}, s.err
	}

	var update reports.ReportUpdate
	current, ok := s.reports[reportId]
	if ok {
		previous := current
		update.Previous = &previous
	} else {
		current = reports.Report{ReportId: reportId}
	}

	mutate(&current)
	s.reports[reportId] = current
	update.Current = current
	return update, nil
}

type memoryDirectory struct {
	mu        sync.Mutex
	handles   map[string]string
	removes   int
	lookupErr error
}

func newMemoryDirectory(handles map[string]string) *memoryDirectory {
	if handles == nil {
		handles = make(map[string]string)
	}
	return &memoryDirectory{handles: handles}
}

func (d *memoryDirectory) Lookup(ctx context.Context, reportId string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lookupErr != nil {
		return "", false, d.lookupErr
	}
	handle, ok := d.handles[reportId]
	return handle, ok, nil
}

func (d *memoryDirectory) Remove(ctx context.Context, reportId string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removes++
	delete(d.handles, reportId)
	return nil
}

type recordingTransport struct {
	mu       sync.Mutex
	sent     map[string][]reports.StatusMessage
	failures map[string]error
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		sent:     make(map[string][]reports.StatusMessage),
		failures: make(map[string]error),
	}
}

func (t *recordingTransport) Deliver(ctx context.Context, handle string, msg reports.StatusMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err, ok := t.failures[handle]; ok {
		return err
	}
	t.sent[handle] = append(t.sent[handle], msg)
	return nil
}

func (t *recordingTransport) attempts(handle string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent[handle])
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	reads   int
}

func (o *memoryObjects) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.reads++
	if o.err != nil {
		return nil, o.err
	}
	data, ok := o.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return data, nil
}

func (o *memoryObjects) ObjectURL(bucket, key string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
}
