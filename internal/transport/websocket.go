package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"report-backend/internal/reports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

type ConnectionPoster interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// WebSocketTransport pushes status messages to API Gateway websocket
// connections. The subscriber handle is the connection id.
type WebSocketTransport struct {
	client ConnectionPoster
}

var _ reports.Transport = (*WebSocketTransport)(nil)

func NewWebSocketTransport(cfg aws.Config, endpoint string) *WebSocketTransport {
	client := apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return NewWebSocketTransportFromClient(client)
}

func NewWebSocketTransportFromClient(client ConnectionPoster) *WebSocketTransport {
	return &WebSocketTransport{client: client}
}

func (w *WebSocketTransport) Deliver(ctx context.Context, handle string, msg reports.StatusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error serializing status message: %w", err)
	}

	_, err = w.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(handle),
		Data:         data,
	})
	if err != nil {
		var goneErr *types.GoneException
		if errors.As(err, &goneErr) {
			return fmt.Errorf("%w: connection %s: %w", reports.ErrSubscriberGone, handle, err)
		}
		return fmt.Errorf("error posting to connection %s: %w", handle, err)
	}

	return nil
}
