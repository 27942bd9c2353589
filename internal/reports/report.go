package reports

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	// StatusNone is the previous status of a report that did not exist before
	// the reconciliation that created it.
	StatusNone       Status = ""
	StatusIncomplete Status = "Incomplete"
	StatusComplete   Status = "Complete"
)

type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "unsupported"
	}
}

type Report struct {
	ReportId    string
	ImageRef    string
	Description string
	Status      Status
	LastUpdated time.Time
}

// DeriveStatus computes the completeness of the report from its fields. Status
// is never set from anywhere else.
func DeriveStatus(report Report) Status {
	if report.ImageRef != "" && report.Description != "" {
		return StatusComplete
	}
	return StatusIncomplete
}

type ReportUpdate struct {
	// Previous is nil when the report did not exist before the update.
	Previous *Report
	Current  Report
}

var (
	ErrReportNotFound = errors.New("report not found")
	ErrStore          = errors.New("report store error")
	ErrFetch          = errors.New("upload fetch error")
	ErrSubscriberGone = errors.New("subscriber is gone")
)

type ReportStore interface {
	GetReport(ctx context.Context, reportId string) (Report, error)

	// UpdateReport applies mutate to the current state of the report (an empty
	// report if absent) and commits the result as one atomic unit. Implementations
	// may call mutate more than once if they retry a conflicting write, so it must
	// depend only on its argument.
	UpdateReport(ctx context.Context, reportId string, mutate func(report *Report)) (ReportUpdate, error)
}

type Directory interface {
	Lookup(ctx context.Context, reportId string) (handle string, found bool, err error)

	// Remove is a no-op if there is no subscription for the report.
	Remove(ctx context.Context, reportId string) error
}

type StatusMessage struct {
	ReportId    string    `json:"reportId"`
	Status      Status    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Transport delivers a message to a subscriber handle. It returns nil when the
// message was delivered, an error wrapping ErrSubscriberGone when the handle can
// never receive messages again, and any other error for transient failures.
type Transport interface {
	Deliver(ctx context.Context, handle string, msg StatusMessage) error
}
