package api

import (
	"time"
)

type Report struct {
	ReportId    string    `json:"reportId"`
	ImageRef    string    `json:"imageRef,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type ListReportsParams struct {
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
	Offset int    `schema:"offset"`
}

type UploadResponse struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	ReportId string `json:"reportId"`
	Kind     string `json:"kind"`
}

type SubscriptionRequest struct {
	Handle string `json:"handle"`
}

// EventResponse is the API Gateway proxy style response computed for an
// upload event. Body holds JSON text.
type EventResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type ReconcileBody struct {
	Message     string    `json:"message"`
	ReportId    string    `json:"reportId"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
}
