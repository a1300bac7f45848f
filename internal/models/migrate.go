package models

import (
	"gorm.io/gorm"
)

// AutoMigrate выполняет миграции всех таблиц
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Station{},
		&Measurement{},
	)
}
