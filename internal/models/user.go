package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User представляет пользователя дашборда
type User struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string         `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255);not null"` // Хеш пароля (не возвращается в JSON)
	Name         string         `json:"name" gorm:"type:varchar(255);not null"`
	Role         string         `json:"role" gorm:"type:varchar(20);default:'user'"` // "user" или "admin"
	IsActive     bool           `json:"isActive" gorm:"default:true"`
	LastLoginAt  *time.Time     `json:"lastLoginAt,omitempty" gorm:"type:timestamp"`
	CreatedAt    time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName указывает имя таблицы
func (User) TableName() string {
	return "users"
}

// BeforeCreate генерирует UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}
