package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeReconciled
)

type Transition struct {
	ReportId string
	Outcome  Outcome

	Previous Status
	Current  Status

	Report Report
}

// Notifiable reports whether subscribers should hear about this transition.
// Only terminal states are pushed.
func (t Transition) Notifiable() bool {
	return t.Outcome == OutcomeReconciled && t.Current == StatusComplete
}

type Engine struct {
	store ReportStore
	now   func() time.Time
}

func NewEngine(store ReportStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

func (e *Engine) Reconcile(ctx context.Context, reportId string, kind Kind, value string) (Transition, error) {
	if kind == KindUnsupported {
		slog.Info("rejecting unsupported upload", "report_id", reportId)
		return Transition{ReportId: reportId, Outcome: OutcomeRejected}, nil
	}

	now := e.now().UTC()

	update, err := e.store.UpdateReport(ctx, reportId, func(report *Report) {
		applyUpload(report, kind, value, now)
	})
	if err != nil {
		slog.Error("error reconciling report", "report_id", reportId, "kind", kind, "error", err)
		return Transition{}, fmt.Errorf("%w: error reconciling %s upload for report %s: %w", ErrStore, kind, reportId, err)
	}

	previous := StatusNone
	if update.Previous != nil {
		previous = update.Previous.Status
	}

	slog.Info("reconciled report", "report_id", reportId, "kind", kind, "previous_status", previous, "status", update.Current.Status)

	return Transition{
		ReportId: reportId,
		Outcome:  OutcomeReconciled,
		Previous: previous,
		Current:  update.Current.Status,
		Report:   update.Current,
	}, nil
}

func applyUpload(report *Report, kind Kind, value string, now time.Time) {
	switch kind {
	case KindImage:
		report.ImageRef = value
	case KindText:
		report.Description = value
	}

	report.Status = DeriveStatus(*report)

	if now.After(report.LastUpdated) {
		report.LastUpdated = now
	}
}
