package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"report-backend/internal/reports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportStore struct {
	db *gorm.DB
}

var _ reports.ReportStore = (*ReportStore)(nil)

func NewReportStore(db *gorm.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (r *Report) toReport() reports.Report {
	return reports.Report{
		ReportId:    r.Id,
		ImageRef:    r.ImageRef.String,
		Description: r.Description.String,
		Status:      reports.Status(r.Status),
		LastUpdated: r.LastUpdated.UTC(),
	}
}

func (r *Report) setFields(report reports.Report) {
	r.ImageRef = sql.NullString{String: report.ImageRef, Valid: report.ImageRef != ""}
	r.Description = sql.NullString{String: report.Description, Valid: report.Description != ""}
	r.Status = string(report.Status)
	r.LastUpdated = report.LastUpdated
}

func (s *ReportStore) GetReport(ctx context.Context, reportId string) (reports.Report, error) {
	var row Report
	if err := s.db.WithContext(ctx).First(&row, "id = ?", reportId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reports.Report{}, reports.ErrReportNotFound
		}
		slog.Error("error getting report", "report_id", reportId, "error", err)
		return reports.Report{}, fmt.Errorf("error getting report %s: %w", reportId, err)
	}
	return row.toReport(), nil
}

// UpdateReport seeds the row if it is missing, locks it, applies mutate and
// saves the result in one transaction. Concurrent updates to the same report
// serialize on the row lock, so each one sees the previous committed state.
func (s *ReportStore) UpdateReport(ctx context.Context, reportId string, mutate func(*reports.Report)) (reports.ReportUpdate, error) {
	var update reports.ReportUpdate

	err := s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		seed := Report{Id: reportId, Status: string(reports.StatusIncomplete)}
		result := txn.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed)
		if result.Error != nil {
			return fmt.Errorf("error creating report %s: %w", reportId, result.Error)
		}
		created := result.RowsAffected == 1

		var row Report
		if err := txn.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", reportId).Error; err != nil {
			return fmt.Errorf("error locking report %s: %w", reportId, err)
		}

		current := row.toReport()
		if !created {
			previous := current
			update.Previous = &previous
		}

		mutate(&current)
		current.ReportId = reportId

		row.setFields(current)
		if err := txn.Save(&row).Error; err != nil {
			return fmt.Errorf("error saving report %s: %w", reportId, err)
		}

		update.Current = current
		return nil
	})
	if err != nil {
		return reports.ReportUpdate{}, err
	}

	return update, nil
}

type ListReportsParams struct {
	Status string
	Limit  int
	Offset int
}

func (s *ReportStore) ListReports(ctx context.Context, params ListReportsParams) ([]reports.Report, error) {
	query := s.db.WithContext(ctx).Order("last_updated DESC").Order("id")
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}

	var rows []Report
	if err := query.Find(&rows).Error; err != nil {
		slog.Error("error listing reports", "status", params.Status, "error", err)
		return nil, fmt.Errorf("error listing reports: %w", err)
	}

	results := make([]reports.Report, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toReport())
	}
	return results, nil
}
