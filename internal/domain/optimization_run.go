package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// OptimizationRun is one async optimization request. It doubles as the
// job-queue row: the worker claims queued rows, heartbeats while running,
// and writes the result or error back on the same record.
type OptimizationRun struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ScenarioID *uuid.UUID `gorm:"type:uuid;column:scenario_id;index" json:"scenario_id,omitempty"`

	// queued|running|succeeded|failed
	Status string `gorm:"column:status;not null;index" json:"status"`

	Request datatypes.JSON `gorm:"column:request" json:"request"`
	Result  datatypes.JSON `gorm:"column:result" json:"result,omitempty"`
	Error   string         `gorm:"column:error" json:"error,omitempty"`

	Attempts    int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LockedAt    *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (OptimizationRun) TableName() string { return "optimization_run" }

func (r *OptimizationRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether the run has finished and will not be picked up again.
func (r *OptimizationRun) Terminal() bool {
	return r.Status == RunStatusSucceeded || r.Status == RunStatusFailed
}
