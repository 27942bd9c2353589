package reports

import (
	"context"
	"errors"
	"log/slog"
)

type NotifyOutcome int

const (
	// NotifySkipped is the outcome for transitions nobody is told about.
	NotifySkipped NotifyOutcome = iota
	NotifyNoSubscriber
	NotifyDelivered
	NotifyPruned
	NotifyTransientFailure
)

func (o NotifyOutcome) String() string {
	switch o {
	case NotifyDelivered:
		return "delivered"
	case NotifyPruned:
		return "pruned"
	case NotifyTransientFailure:
		return "transient_failure"
	case NotifyNoSubscriber:
		return "no_subscriber"
	default:
		return "skipped"
	}
}

type Notifier struct {
	directory Directory
	transport Transport
}

func NewNotifier(directory Directory, transport Transport) *Notifier {
	return &Notifier{directory: directory, transport: transport}
}

// Notify pushes the new status of a report to its subscriber, if any. Delivery
// problems never surface as errors: the report is already durably reconciled.
func (n *Notifier) Notify(ctx context.Context, transition Transition) NotifyOutcome {
	reportId := transition.ReportId

	handle, found, err := n.directory.Lookup(ctx, reportId)
	if err != nil {
		slog.Error("error looking up subscriber", "report_id", reportId, "error", err)
		return NotifyTransientFailure
	}
	if !found {
		return NotifyNoSubscriber
	}

	msg := StatusMessage{
		ReportId:    reportId,
		Status:      transition.Current,
		LastUpdated: transition.Report.LastUpdated,
	}

	err = n.transport.Deliver(ctx, handle, msg)
	switch {
	case err == nil:
		slog.Info("delivered report status", "report_id", reportId, "status", msg.Status)
		return NotifyDelivered

	case errors.Is(err, ErrSubscriberGone):
		slog.Info("subscriber is gone, removing subscription", "report_id", reportId)
		if err := n.directory.Remove(ctx, reportId); err != nil {
			slog.Error("error removing stale subscription", "report_id", reportId, "error", err)
		}
		return NotifyPruned

	default:
		slog.Warn("error delivering report status", "report_id", reportId, "error", err)
		return NotifyTransientFailure
	}
}
