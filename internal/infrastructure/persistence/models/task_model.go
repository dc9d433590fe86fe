package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskModel is the database shape of a finished (or in-flight) task.
type TaskModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	SessionID   string `gorm:"index;size:64"`
	ToolName    string `gorm:"size:64"`
	Command     string `gorm:"type:text;not null"`
	Mode        string `gorm:"size:16;not null"`
	State       string `gorm:"index;size:16;not null"`
	Result      string `gorm:"type:text"`
	FailReason  string `gorm:"type:text"`
	Container   string `gorm:"type:text"` // JSON encoded spec, empty for non-container tasks
	TimeoutMs   int64
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (TaskModel) TableName() string {
	return "tasks"
}
