package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"report-backend/internal/reports"
	"report-backend/pkg/api"
)

const processingComplete = "Processing complete"

func responseHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
	}
}

func newEventResponse(statusCode int, body any) api.EventResponse {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("error serializing event response body", "error", err)
		statusCode = http.StatusInternalServerError
		data = []byte(`"error serializing response body"`)
	}
	return api.EventResponse{StatusCode: statusCode, Headers: responseHeaders(), Body: string(data)}
}

// itemResponse gives the status code and body for one processed upload.
func itemResponse(item reports.BatchItem) (int, any) {
	switch {
	case errors.Is(item.Err, reports.ErrFetch):
		return http.StatusNotFound, fmt.Sprintf("Error reading text file: %v", item.Err)
	case item.Err != nil:
		return http.StatusInternalServerError, fmt.Sprintf("Error updating report: %v", item.Err)
	case item.Result.Rejected():
		return http.StatusBadRequest, fmt.Sprintf("No valid update for file: %s", item.Result.Event.Key)
	}

	report := item.Result.Transition.Report
	return http.StatusOK, api.ReconcileBody{
		Message:     processingComplete,
		ReportId:    report.ReportId,
		Status:      string(report.Status),
		LastUpdated: report.LastUpdated,
	}
}

// NewEventResponse summarizes the outcome of an upload event. A single record
// maps to its own status code and body. For several records the body is the
// list of per record bodies and the status code is the highest among them.
func NewEventResponse(items []reports.BatchItem) api.EventResponse {
	if len(items) == 0 {
		return newEventResponse(http.StatusBadRequest, "No records in event")
	}

	if len(items) == 1 {
		return newEventResponse(itemResponse(items[0]))
	}

	statusCode := http.StatusOK
	bodies := make([]any, 0, len(items))
	for _, item := range items {
		code, body := itemResponse(item)
		statusCode = max(statusCode, code)
		bodies = append(bodies, body)
	}
	return newEventResponse(statusCode, bodies)
}

func WriteEventResponse(w http.ResponseWriter, res api.EventResponse) {
	for key, value := range res.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(res.StatusCode)
	if _, err := w.Write([]byte(res.Body)); err != nil {
		slog.Error("error writing event response", "error", err)
	}
}
