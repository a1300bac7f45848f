package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Measurement представляет один замер датчиков метеостанции.
// Расширенные поля (УФ-индекс, осадки, видимость) опциональны:
// старые записи базового варианта их не содержат.
type Measurement struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	StationID     string    `json:"stationId" gorm:"type:uuid;not null;index:idx_measurements_station_ts,priority:1"`
	Temperature   float64   `json:"temperature" gorm:"not null"` // °C
	Humidity      float64   `json:"humidity" gorm:"not null"`    // %
	WindSpeed     float64   `json:"windSpeed" gorm:"not null"`   // км/ч
	WindDirection float64   `json:"windDirection" gorm:"not null"` // градусы
	Pressure      float64   `json:"pressure" gorm:"not null"`    // гПа
	UVIndex       *float64  `json:"uvIndex,omitempty"`
	Precipitation *float64  `json:"precipitation,omitempty"` // мм
	Visibility    *float64  `json:"visibility,omitempty"`    // км
	Timestamp     time.Time `json:"timestamp" gorm:"not null;index:idx_measurements_station_ts,priority:2"`
	Notes         string    `json:"notes" gorm:"type:text"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	// Связь со станцией (для отдачи станции вместе с замером без второго запроса)
	Station *Station `json:"station,omitempty" gorm:"foreignKey:StationID;references:ID"`
}

// TableName указывает имя таблицы
func (Measurement) TableName() string {
	return "measurements"
}

// BeforeCreate генерирует UUID
func (m *Measurement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
