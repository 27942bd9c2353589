package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"report-backend/internal/reports"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const defaultMaxAttempts = 5

var ErrConflict = errors.New("too many conflicting writes")

type reportItem struct {
	ReportId    string `dynamodbav:"ReportId"`
	ImageURL    string `dynamodbav:"ImageURL,omitempty"`
	Description string `dynamodbav:"Description,omitempty"`
	Status      string `dynamodbav:"Status"`
	LastUpdated string `dynamodbav:"LastUpdated"`
	Version     int64  `dynamodbav:"Version"`
}

// Items written before versioning store LastUpdated as a naive isoformat
// string in UTC.
var lastUpdatedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"}

func parseLastUpdated(value string) time.Time {
	for _, layout := range lastUpdatedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	if value != "" {
		slog.Warn("unrecognized report timestamp", "last_updated", value)
	}
	return time.Time{}
}

func formatLastUpdated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (i reportItem) toReport() reports.Report {
	return reports.Report{
		ReportId:    i.ReportId,
		ImageRef:    i.ImageURL,
		Description: i.Description,
		Status:      reports.Status(i.Status),
		LastUpdated: parseLastUpdated(i.LastUpdated),
	}
}

// ReportStore keeps reports in a DynamoDB table keyed by ReportId. Writes are
// optimistic: each item carries a Version that must match the one read for the
// put to succeed. Items without a Version are treated as version 0.
type ReportStore struct {
	client      API
	table       string
	maxAttempts int
}

var _ reports.ReportStore = (*ReportStore)(nil)

func NewReportStore(client API, table string) *ReportStore {
	return &ReportStore{client: client, table: table, maxAttempts: defaultMaxAttempts}
}

func reportKey(reportId string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"ReportId": &types.AttributeValueMemberS{Value: reportId}}
}

func (s *ReportStore) getItem(ctx context.Context, reportId string) (*reportItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            reportKey(reportId),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting report %s: %w", reportId, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item reportItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("error decoding report %s: %w", reportId, err)
	}
	return &item, nil
}

func (s *ReportStore) GetReport(ctx context.Context, reportId string) (reports.Report, error) {
	item, err := s.getItem(ctx, reportId)
	if err != nil {
		slog.Error("error getting report", "report_id", reportId, "error", err)
		return reports.Report{}, err
	}
	if item == nil {
		return reports.Report{}, reports.ErrReportNotFound
	}
	return item.toReport(), nil
}

func (s *ReportStore) UpdateReport(ctx context.Context, reportId string, mutate func(*reports.Report)) (reports.ReportUpdate, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		update, err := s.tryUpdate(ctx, reportId, mutate)
		if err == nil {
			return update, nil
		}

		var conflict *types.ConditionalCheckFailedException
		if !errors.As(err, &conflict) {
			return reports.ReportUpdate{}, err
		}

		slog.Warn("conflicting report write, retrying", "report_id", reportId, "attempt", attempt)
	}

	return reports.ReportUpdate{}, fmt.Errorf("error updating report %s after %d attempts: %w", reportId, s.maxAttempts, ErrConflict)
}

func (s *ReportStore) tryUpdate(ctx context.Context, reportId string, mutate func(*reports.Report)) (reports.ReportUpdate, error) {
	existing, err := s.getItem(ctx, reportId)
	if err != nil {
		return reports.ReportUpdate{}, err
	}

	var update reports.ReportUpdate
	current := reports.Report{ReportId: reportId}
	next := reportItem{ReportId: reportId, Version: 1}

	condition := "attribute_not_exists(ReportId)"
	var values map[string]types.AttributeValue

	if existing != nil {
		current = existing.toReport()
		previous := current
		update.Previous = &previous

		next.Version = existing.Version + 1
		condition = "Version = :version"
		if existing.Version == 0 {
			condition = "attribute_not_exists(Version) OR Version = :version"
		}
		values = map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(existing.Version, 10)},
		}
	}

	mutate(&current)
	current.ReportId = reportId

	next.ImageURL = current.ImageRef
	next.Description = current.Description
	next.Status = string(current.Status)
	next.LastUpdated = formatLastUpdated(current.LastUpdated)

	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return reports.ReportUpdate{}, fmt.Errorf("error encoding report %s: %w", reportId, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.table),
		Item:                      item,
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return reports.ReportUpdate{}, fmt.Errorf("error putting report %s: %w", reportId, err)
	}

	update.Current = current
	return update, nil
}
