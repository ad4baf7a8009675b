package models

import "time"

type NamedLock struct {
	ID        string    `gorm:"primaryKey;size:255;"`
	Name      string    `gorm:"size:255;uniqueIndex"`
	Owner     string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
}
