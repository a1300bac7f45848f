package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"weatherdash/server/internal/models"
)

// ErrStationNotFound возвращается, когда станция с указанным ID не существует
var ErrStationNotFound = errors.New("станция не найдена")

// ErrStationNameTaken возвращается при попытке создать станцию с занятым именем
var ErrStationNameTaken = errors.New("станция с таким именем уже существует")

// ErrStationInvalid возвращается при невалидных данных станции (имя, координаты).
// Контроллер отличает его от ошибок хранилища: клиентская ошибка против серверной.
var ErrStationInvalid = errors.New("невалидные данные станции")

// StationService управляет справочником метеостанций
type StationService struct {
	db *gorm.DB
}

// NewStationService создает новый экземпляр StationService
func NewStationService(db *gorm.DB) *StationService {
	return &StationService{db: db}
}

// StationUpdate представляет частичное обновление станции.
// Указатели отличают "не передано" от нулевого значения (is_active=false и т.п.)
type StationUpdate struct {
	Name        *string          `json:"name"`
	Location    *models.Location `json:"location"`
	City        *string          `json:"city"`
	Country     *string          `json:"country"`
	IsActive    *bool            `json:"isActive"`
	Description *string          `json:"description"`
}

// GetActiveStations возвращает список всех активных станций
func (s *StationService) GetActiveStations() ([]models.Station, error) {
	var stations []models.Station
	if err := s.db.Where("is_active = ?", true).Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения станций: %w", err)
	}
	return stations, nil
}

// GetStationByID возвращает станцию по ID
func (s *StationService) GetStationByID(id string) (*models.Station, error) {
	var station models.Station
	if err := s.db.First(&station, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("станция с ID %s: %w", id, ErrStationNotFound)
		}
		return nil, fmt.Errorf("ошибка получения станции %s: %w", id, err)
	}
	return &station, nil
}

// CreateStation создает новую станцию
func (s *StationService) CreateStation(station *models.Station) error {
	if station.Name == "" {
		return fmt.Errorf("имя станции обязательно: %w", ErrStationInvalid)
	}
	if err := validateLocation(station.Location); err != nil {
		return err
	}

	// Имя станции должно быть уникальным
	var count int64
	if err := s.db.Model(&models.Station{}).Where("name = ?", station.Name).Count(&count).Error; err != nil {
		return fmt.Errorf("ошибка проверки имени станции: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("имя %q: %w", station.Name, ErrStationNameTaken)
	}

	if err := s.db.Create(station).Error; err != nil {
		return fmt.Errorf("ошибка создания станции: %w", err)
	}

	return nil
}

// UpdateStation частично обновляет станцию (last-write-wins, без блокировок:
// станции меняются редко и только администратором)
func (s *StationService) UpdateStation(id string, update *StationUpdate) (*models.Station, error) {
	station, err := s.GetStationByID(id)
	if err != nil {
		return nil, err
	}

	patch := map[string]interface{}{}
	if update.Name != nil {
		patch["name"] = *update.Name
	}
	if update.Location != nil {
		if err := validateLocation(*update.Location); err != nil {
			return nil, err
		}
		patch["latitude"] = update.Location.Latitude
		patch["longitude"] = update.Location.Longitude
	}
	if update.City != nil {
		patch["city"] = *update.City
	}
	if update.Country != nil {
		patch["country"] = *update.Country
	}
	if update.IsActive != nil {
		patch["is_active"] = *update.IsActive
	}
	if update.Description != nil {
		patch["description"] = *update.Description
	}

	if len(patch) == 0 {
		return station, nil
	}

	if err := s.db.Model(station).Updates(patch).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления станции %s: %w", id, err)
	}

	return s.GetStationByID(id)
}

// DeleteStation удаляет станцию (мягкое удаление)
func (s *StationService) DeleteStation(id string) error {
	if _, err := s.GetStationByID(id); err != nil {
		return err
	}
	if err := s.db.Delete(&models.Station{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("ошибка удаления станции %s: %w", id, err)
	}
	return nil
}

// validateLocation проверяет диапазоны геокоординат
func validateLocation(loc models.Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return fmt.Errorf("широта %v вне диапазона [-90, 90]: %w", loc.Latitude, ErrStationInvalid)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("долгота %v вне диапазона [-180, 180]: %w", loc.Longitude, ErrStationInvalid)
	}
	return nil
}
