package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"weatherdash/server/internal/models"
	"weatherdash/server/internal/utils"
)

// ErrMeasurementNotFound возвращается, когда замер с указанным ID не существует
var ErrMeasurementNotFound = errors.New("замер не найден")

// DefaultHistoryLimit — лимит истории замеров по станции по умолчанию
const DefaultHistoryLimit = 30

// latestCacheTTL — время жизни кэша последнего замера станции
const latestCacheTTL = 60 * time.Second

// MeasurementService управляет созданием и выборками замеров
type MeasurementService struct {
	db        *gorm.DB
	redisUtil *utils.RedisClient // Кэш последних замеров (опционально, может быть nil)
}

// NewMeasurementService создает новый экземпляр MeasurementService
func NewMeasurementService(db *gorm.DB, redisUtil *utils.RedisClient) *MeasurementService {
	return &MeasurementService{db: db, redisUtil: redisUtil}
}

// MeasurementUpdate представляет частичное административное обновление замера.
// Станция-владелец неизменяема после создания, поэтому stationId здесь нет.
type MeasurementUpdate struct {
	Temperature   *float64   `json:"temperature"`
	Humidity      *float64   `json:"humidity"`
	WindSpeed     *float64   `json:"windSpeed"`
	WindDirection *float64   `json:"windDirection"`
	Pressure      *float64   `json:"pressure"`
	UVIndex       *float64   `json:"uvIndex"`
	Precipitation *float64   `json:"precipitation"`
	Visibility    *float64   `json:"visibility"`
	Timestamp     *time.Time `json:"timestamp"`
	Notes         *string    `json:"notes"`
}

// CreateMeasurement сохраняет новый замер и возвращает его с подгруженной станцией.
// Станция должна существовать: замеры-сироты не допускаются.
func (s *MeasurementService) CreateMeasurement(m *models.Measurement) error {
	if m.StationID == "" {
		return fmt.Errorf("stationId обязателен")
	}

	var count int64
	if err := s.db.Model(&models.Station{}).Where("id = ?", m.StationID).Count(&count).Error; err != nil {
		return fmt.Errorf("ошибка проверки станции %s: %w", m.StationID, err)
	}
	if count == 0 {
		return fmt.Errorf("станция %s: %w", m.StationID, ErrStationNotFound)
	}

	// Время события может прийти от клиента; если нет — берем серверное
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	if err := s.db.Create(m).Error; err != nil {
		return fmt.Errorf("ошибка сохранения замера: %w", err)
	}

	// Подгружаем станцию, чтобы ответ и broadcast содержали ее без второго запроса
	if err := s.db.Preload("Station").First(m, "id = ?", m.ID).Error; err != nil {
		return fmt.Errorf("ошибка чтения сохраненного замера: %w", err)
	}

	s.invalidateLatestCache(m.StationID)
	return nil
}

// GetAllMeasurements возвращает все замеры с подгруженными станциями
func (s *MeasurementService) GetAllMeasurements() ([]models.Measurement, error) {
	var measurements []models.Measurement
	if err := s.db.Preload("Station").Find(&measurements).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения замеров: %w", err)
	}
	return measurements, nil
}

// GetMeasurementByID возвращает замер по ID
func (s *MeasurementService) GetMeasurementByID(id string) (*models.Measurement, error) {
	var m models.Measurement
	if err := s.db.Preload("Station").First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("замер с ID %s: %w", id, ErrMeasurementNotFound)
		}
		return nil, fmt.Errorf("ошибка получения замера %s: %w", id, err)
	}
	return &m, nil
}

// GetMeasurementsByStation возвращает последние замеры станции
// (по времени события, от новых к старым, максимум limit штук)
func (s *MeasurementService) GetMeasurementsByStation(stationID string, limit int) ([]models.Measurement, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var measurements []models.Measurement
	err := s.db.Preload("Station").
		Where("station_id = ?", stationID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&measurements).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения замеров станции %s: %w", stationID, err)
	}
	return measurements, nil
}

// GetLatestByStation возвращает самый свежий замер станции
func (s *MeasurementService) GetLatestByStation(stationID string) (*models.Measurement, error) {
	// Сначала пробуем кэш
	if s.redisUtil != nil {
		var cached models.Measurement
		if err := s.redisUtil.GetJSON(latestCacheKey(stationID), &cached); err == nil && cached.ID != "" {
			return &cached, nil
		}
	}

	var m models.Measurement
	err := s.db.Preload("Station").
		Where("station_id = ?", stationID).
		Order("timestamp DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("станция %s без замеров: %w", stationID, ErrMeasurementNotFound)
		}
		return nil, fmt.Errorf("ошибка получения последнего замера станции %s: %w", stationID, err)
	}

	if s.redisUtil != nil {
		if err := s.redisUtil.Set(latestCacheKey(stationID), &m, latestCacheTTL); err != nil {
			log.Printf("⚠️ Не удалось закэшировать последний замер станции %s: %v", stationID, err)
		}
	}

	return &m, nil
}

// GetLatestDateByStation возвращает только время самого свежего замера станции
func (s *MeasurementService) GetLatestDateByStation(stationID string) (time.Time, error) {
	m, err := s.GetLatestByStation(stationID)
	if err != nil {
		return time.Time{}, err
	}
	return m.Timestamp, nil
}

// GetLatestAllStations возвращает по одному самому свежему замеру для каждой
// станции, у которой есть хотя бы один замер. Один сгруппированный запрос
// вместо цикла "запрос на станцию" — количество станций не ограничено.
func (s *MeasurementService) GetLatestAllStations() ([]models.Measurement, error) {
	sub := s.db.Model(&models.Measurement{}).
		Select("station_id AS sid, MAX(timestamp) AS max_ts").
		Group("station_id")

	var measurements []models.Measurement
	err := s.db.Preload("Station").
		Joins("JOIN (?) latest ON latest.sid = measurements.station_id AND latest.max_ts = measurements.timestamp", sub).
		Find(&measurements).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения последних замеров: %w", err)
	}

	// При совпадении времени у двух замеров одной станции JOIN вернет оба —
	// оставляем по одному на станцию
	seen := make(map[string]bool, len(measurements))
	result := make([]models.Measurement, 0, len(measurements))
	for _, m := range measurements {
		if seen[m.StationID] {
			continue
		}
		seen[m.StationID] = true
		result = append(result, m)
	}

	return result, nil
}

// GetMeasurementsByDateRange возвращает замеры станции в интервале
// [start, end] включительно, от старых к новым
func (s *MeasurementService) GetMeasurementsByDateRange(stationID string, start, end time.Time) ([]models.Measurement, error) {
	var measurements []models.Measurement
	err := s.db.Preload("Station").
		Where("station_id = ? AND timestamp >= ? AND timestamp <= ?", stationID, start, end).
		Order("timestamp ASC").
		Find(&measurements).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения замеров станции %s за период: %w", stationID, err)
	}
	return measurements, nil
}

// UpdateMeasurement частично обновляет замер (административная корректировка,
// не горячий путь)
func (s *MeasurementService) UpdateMeasurement(id string, update *MeasurementUpdate) (*models.Measurement, error) {
	m, err := s.GetMeasurementByID(id)
	if err != nil {
		return nil, err
	}

	patch := map[string]interface{}{}
	if update.Temperature != nil {
		patch["temperature"] = *update.Temperature
	}
	if update.Humidity != nil {
		patch["humidity"] = *update.Humidity
	}
	if update.WindSpeed != nil {
		patch["wind_speed"] = *update.WindSpeed
	}
	if update.WindDirection != nil {
		patch["wind_direction"] = *update.WindDirection
	}
	if update.Pressure != nil {
		patch["pressure"] = *update.Pressure
	}
	if update.UVIndex != nil {
		patch["uv_index"] = *update.UVIndex
	}
	if update.Precipitation != nil {
		patch["precipitation"] = *update.Precipitation
	}
	if update.Visibility != nil {
		patch["visibility"] = *update.Visibility
	}
	if update.Timestamp != nil {
		patch["timestamp"] = *update.Timestamp
	}
	if update.Notes != nil {
		patch["notes"] = *update.Notes
	}

	if len(patch) > 0 {
		if err := s.db.Model(m).Updates(patch).Error; err != nil {
			return nil, fmt.Errorf("ошибка обновления замера %s: %w", id, err)
		}
		s.invalidateLatestCache(m.StationID)
	}

	return s.GetMeasurementByID(id)
}

// DeleteMeasurement удаляет замер
func (s *MeasurementService) DeleteMeasurement(id string) error {
	m, err := s.GetMeasurementByID(id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(&models.Measurement{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("ошибка удаления замера %s: %w", id, err)
	}
	s.invalidateLatestCache(m.StationID)
	return nil
}

func (s *MeasurementService) invalidateLatestCache(stationID string) {
	if s.redisUtil == nil {
		return
	}
	if err := s.redisUtil.Delete(latestCacheKey(stationID)); err != nil {
		log.Printf("⚠️ Не удалось сбросить кэш последнего замера станции %s: %v", stationID, err)
	}
}

func latestCacheKey(stationID string) string {
	return fmt.Sprintf("weather:latest:%s", stationID)
}
