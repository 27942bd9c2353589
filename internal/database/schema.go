package database

import (
	"database/sql"
	"time"
)

type Report struct {
	Id string `gorm:"primaryKey;size:255"`

	ImageRef    sql.NullString
	Description sql.NullString `gorm:"type:text"`

	Status      string `gorm:"size:20;not null;index:idx_reports_status"`
	LastUpdated time.Time
}

type Subscription struct {
	ReportId string `gorm:"primaryKey;size:255"`
	Handle   string `gorm:"not null"`

	CreationTime time.Time
}
