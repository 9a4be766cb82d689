package model

import (
	"time"

	"gorm.io/datatypes"
)

// ScanRecord is the persisted form of a ScanJob. The snapshot or failure
// payload is stored as a JSON document; records are append-only and never
// updated after reaching a terminal status.
type ScanRecord struct {
	ID         uint           `gorm:"primaryKey"`
	HostID     uint           `gorm:"index"`
	Status     string         `gorm:"size:16;index"`
	StartedAt  time.Time      ``
	FinishedAt *time.Time     `gorm:"index"`
	Data       datatypes.JSON ``
}
