package models

import (
	"time"

	"advflow/pkg/gormx"
)

type WorkflowDefinition struct {
	ID              string            `gorm:"primaryKey;size:255;"`
	Title           string            `gorm:"index;size:255"`
	Description     string            `gorm:"type:text"`
	InitialActionID string            `gorm:"size:255"`
	RemindDays      int               `gorm:"default:0"`
	Users           gormx.SliceString `gorm:"type:text"`
	Groups          gormx.SliceString `gorm:"type:text"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
}

type WorkflowAction struct {
	ID           string `gorm:"primaryKey;size:255;"`
	DefinitionID string `gorm:"index;size:255"`
	Title        string `gorm:"size:255"`
	// Type selects the action variant, e.g. approval, notify, publish.
	Type            string            `gorm:"size:64"`
	Sort            int               `gorm:"default:0"`
	Config          gormx.MapJson     `gorm:"type:text"`
	Users           gormx.SliceString `gorm:"type:text"`
	Groups          gormx.SliceString `gorm:"type:text"`
	AllowPublishing bool

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
}

type WorkflowTransition struct {
	ID             string            `gorm:"primaryKey;size:255;"`
	DefinitionID   string            `gorm:"index;size:255"`
	SourceActionID string            `gorm:"index;size:255"`
	TargetActionID string            `gorm:"size:255"`
	Title          string            `gorm:"size:255"`
	Guard          string            `gorm:"size:64"`
	Sort           int               `gorm:"default:0"`
	Users          gormx.SliceString `gorm:"type:text"`
	Groups         gormx.SliceString `gorm:"type:text"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
}
