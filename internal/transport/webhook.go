package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"report-backend/internal/reports"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// WebhookTransport posts status messages to the callback url registered as the
// subscriber handle. 404 and 410 responses mean the subscriber is gone.
type WebhookTransport struct {
	client *resty.Client
}

var _ reports.Transport = (*WebhookTransport)(nil)

func NewWebhookTransport(timeout time.Duration) *WebhookTransport {
	return &WebhookTransport{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "report-backend-webhook"),
	}
}

func (w *WebhookTransport) Deliver(ctx context.Context, handle string, msg reports.StatusMessage) error {
	target, err := url.Parse(handle)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return fmt.Errorf("%w: invalid webhook url %q", reports.ErrSubscriberGone, handle)
	}

	messageId := uuid.New()

	res, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Message-Id", messageId.String()).
		SetBody(msg).
		Post(target.String())
	if err != nil {
		return fmt.Errorf("error posting to webhook %s: %w", target.Host, err)
	}

	switch {
	case res.IsSuccess():
		slog.Debug("webhook delivered", "report_id", msg.ReportId, "message_id", messageId, "status_code", res.StatusCode())
		return nil
	case res.StatusCode() == http.StatusGone || res.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: webhook %s returned %d", reports.ErrSubscriberGone, target.Host, res.StatusCode())
	default:
		return fmt.Errorf("webhook %s returned %d: %s", target.Host, res.StatusCode(), res.String())
	}
}
