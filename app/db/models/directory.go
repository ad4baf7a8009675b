package models

import (
	"time"

	"advflow/pkg/gormx"
)

type Member struct {
	ID        string        `gorm:"primaryKey;size:255;"`
	Email     string        `gorm:"index;size:255"`
	FirstName string        `gorm:"size:255"`
	Surname   string        `gorm:"size:255"`
	Admin     bool          `gorm:"default:false"`
	Fields    gormx.MapJson `gorm:"type:text"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
}

type Group struct {
	ID    string `gorm:"primaryKey;size:255;"`
	Title string `gorm:"size:255"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
}

type GroupMember struct {
	GroupID  string `gorm:"primaryKey;size:255"`
	MemberID string `gorm:"primaryKey;size:255;index"`
}
