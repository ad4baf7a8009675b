package models

import "time"

type WorkflowInstance struct {
	ID           string `gorm:"primaryKey;size:255;"`
	DefinitionID string `gorm:"index;size:255"`
	Title        string `gorm:"size:255"`
	TargetType   string `gorm:"index:idx_instance_target;size:100"`
	TargetID     string `gorm:"index:idx_instance_target;size:255"`
	// empty once the instance is complete or cancelled
	CurrentActionID string `gorm:"size:255"`
	Status          string `gorm:"index;size:32"`
	InitiatorID     string `gorm:"size:255"`
	RemindDays      int    `gorm:"default:0"`
	Version         int    `gorm:"not null;default:1"`

	CreatedAt    time.Time  `gorm:"default:null"`
	LastActivity time.Time  `gorm:"default:null"`
	FinishedAt   *time.Time `gorm:"default:null"`
}

// WorkflowActionInstance is one audit record of an instance. Rows are only
// ever inserted.
type WorkflowActionInstance struct {
	ID             string `gorm:"primaryKey;size:255;"`
	InstanceID     string `gorm:"uniqueIndex:idx_history_seq;size:255"`
	Seq            int    `gorm:"uniqueIndex:idx_history_seq"`
	Event          string `gorm:"size:32"`
	ActionID       string `gorm:"size:255"`
	TransitionID   string `gorm:"size:255"`
	TargetActionID string `gorm:"size:255"`
	PrincipalID    string `gorm:"size:255"`
	Comment        string `gorm:"type:text"`
	Outcome        string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"default:null"`
}
