package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"report-backend/internal/reports"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionDirectory struct {
	db *gorm.DB
}

var _ reports.Directory = (*SubscriptionDirectory)(nil)

func NewSubscriptionDirectory(db *gorm.DB) *SubscriptionDirectory {
	return &SubscriptionDirectory{db: db}
}

func (d *SubscriptionDirectory) Lookup(ctx context.Context, reportId string) (string, bool, error) {
	var sub Subscription
	if err := d.db.WithContext(ctx).First(&sub, "report_id = ?", reportId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("error looking up subscription for report %s: %w", reportId, err)
	}
	return sub.Handle, true, nil
}

func (d *SubscriptionDirectory) Remove(ctx context.Context, reportId string) error {
	if err := d.db.WithContext(ctx).Delete(&Subscription{}, "report_id = ?", reportId).Error; err != nil {
		return fmt.Errorf("error removing subscription for report %s: %w", reportId, err)
	}
	return nil
}

// Register stores handle as the subscriber for the report, replacing any
// existing one.
func (d *SubscriptionDirectory) Register(ctx context.Context, reportId, handle string) error {
	sub := Subscription{ReportId: reportId, Handle: handle, CreationTime: time.Now().UTC()}

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle", "creation_time"}),
	}).Create(&sub).Error
	if err != nil {
		slog.Error("error registering subscription", "report_id", reportId, "error", err)
		return fmt.Errorf("error registering subscription for report %s: %w", reportId, err)
	}

	slog.Info("registered subscription", "report_id", reportId)
	return nil
}
