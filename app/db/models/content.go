package models

import (
	"time"

	"advflow/pkg/gormx"
)

// Content is a record that can be put under workflow: a page, a document.
type Content struct {
	Type       string        `gorm:"primaryKey;size:100"`
	ID         string        `gorm:"primaryKey;size:255"`
	Title      string        `gorm:"size:255"`
	ParentType string        `gorm:"size:100"`
	ParentID   string        `gorm:"size:255"`
	Link       string        `gorm:"size:1024"`
	Fields     gormx.MapJson `gorm:"type:text"`
	Published  gormx.MapJson `gorm:"type:text"`
	// DefinitionID is the workflow assigned directly to this record.
	DefinitionID string `gorm:"size:255"`

	PublishedAt *time.Time `gorm:"default:null"`
	CreatedAt   time.Time  `gorm:"default:null"`
	UpdatedAt   time.Time  `gorm:"default:null"`
}
