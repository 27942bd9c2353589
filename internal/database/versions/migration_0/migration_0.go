package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Report struct {
	Id string `gorm:"primaryKey;size:255"`

	ImageRef    sql.NullString
	Description sql.NullString `gorm:"type:text"`

	Status      string `gorm:"size:20;not null"`
	LastUpdated time.Time
}

type Subscription struct {
	ReportId string `gorm:"primaryKey;size:255"`
	Handle   string `gorm:"not null"`

	CreationTime time.Time
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Report{}, &Subscription{}); err != nil {
		return fmt.Errorf("error creating initial tables: %w", err)
	}
	return nil
}
