package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Location представляет геокоординаты станции (встроенные колонки в БД)
type Location struct {
	Latitude  float64 `json:"latitude" gorm:"not null"`
	Longitude float64 `json:"longitude" gorm:"not null"`
}

// Station представляет метеостанцию
type Station struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	Location    Location       `json:"location" gorm:"embedded"`
	City        string         `json:"city" gorm:"type:varchar(100);not null"`
	Country     string         `json:"country" gorm:"type:varchar(100);not null"`
	IsActive    bool           `json:"isActive" gorm:"default:true"`
	Description string         `json:"description" gorm:"type:text"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName указывает имя таблицы
func (Station) TableName() string {
	return "stations"
}

// BeforeCreate генерирует UUID
func (s *Station) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
