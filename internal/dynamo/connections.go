package dynamo

import (
	"context"
	"fmt"
	"report-backend/internal/reports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type connectionItem struct {
	ReportId     string `dynamodbav:"ReportId"`
	ConnectionId string `dynamodbav:"ConnectionId"`
}

// ConnectionDirectory maps reports to the API Gateway websocket connection
// waiting on them.
type ConnectionDirectory struct {
	client API
	table  string
}

var _ reports.Directory = (*ConnectionDirectory)(nil)

func NewConnectionDirectory(client API, table string) *ConnectionDirectory {
	return &ConnectionDirectory{client: client, table: table}
}

func (d *ConnectionDirectory) Lookup(ctx context.Context, reportId string) (string, bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       reportKey(reportId),
	})
	if err != nil {
		return "", false, fmt.Errorf("error looking up connection for report %s: %w", reportId, err)
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}

	var item connectionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", false, fmt.Errorf("error decoding connection for report %s: %w", reportId, err)
	}
	if item.ConnectionId == "" {
		return "", false, nil
	}
	return item.ConnectionId, true, nil
}

func (d *ConnectionDirectory) Remove(ctx context.Context, reportId string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       reportKey(reportId),
	})
	if err != nil {
		return fmt.Errorf("error removing connection for report %s: %w", reportId, err)
	}
	return nil
}

func (d *ConnectionDirectory) Register(ctx context.Context, reportId, connectionId string) error {
	item, err := attributevalue.MarshalMap(connectionItem{ReportId: reportId, ConnectionId: connectionId})
	if err != nil {
		return fmt.Errorf("error encoding connection for report %s: %w", reportId, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("error registering connection for report %s: %w", reportId, err)
	}
	return nil
}
