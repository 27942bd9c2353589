package migration_1

import (
	"fmt"

	"gorm.io/gorm"
)

type Report struct {
	Status string `gorm:"size:20;not null;index:idx_reports_status"`
}

const statusIndex = "idx_reports_status"

// Migration adds an index on report status, used when listing complete or
// incomplete reports.
func Migration(db *gorm.DB) error {
	if db.Migrator().HasIndex(&Report{}, statusIndex) {
		return nil
	}
	if err := db.Migrator().CreateIndex(&Report{}, statusIndex); err != nil {
		return fmt.Errorf("error creating %s index: %w", statusIndex, err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropIndex(&Report{}, statusIndex); err != nil {
		return fmt.Errorf("error dropping %s index: %w", statusIndex, err)
	}
	return nil
}
