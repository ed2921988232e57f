package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FunnelScenario is a saved funnel configuration: the ordered steps plus the
// global parameters they were authored with, both stored as JSON payloads.
// Names are unique among live rows (enforced by a partial index, see db.EnsureIndexes).
type FunnelScenario struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"column:name;not null;index" json:"name"`
	Description string         `gorm:"column:description" json:"description,omitempty"`
	Steps       datatypes.JSON `gorm:"column:steps" json:"steps"`
	Parameters  datatypes.JSON `gorm:"column:parameters" json:"parameters"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FunnelScenario) TableName() string { return "funnel_scenario" }

// BeforeCreate assigns the id client-side so the same model works on SQLite
// and Postgres without a DB-level uuid default.
func (s *FunnelScenario) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
