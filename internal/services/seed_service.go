package services

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"weatherdash/server/internal/models"
	"weatherdash/server/internal/utils"
)

// SeedService наполняет базу демонстрационными данными
type SeedService struct {
	db        *gorm.DB
	redisUtil *utils.RedisClient // Кэш последних замеров (опционально, может быть nil)
}

// NewSeedService создает новый экземпляр SeedService
func NewSeedService(db *gorm.DB, redisUtil *utils.RedisClient) *SeedService {
	return &SeedService{db: db, redisUtil: redisUtil}
}

// SeedResult описывает результат наполнения базы
type SeedResult struct {
	Users        int `json:"users"`
	Stations     int `json:"stations"`
	Measurements int `json:"measurements"`
}

// Seed очищает базу и создает демо-пользователей, станции и 30 дней
// почасовых замеров для каждой станции
func (s *SeedService) Seed() (*SeedResult, error) {
	// Сбрасываем кэш последних замеров до очистки: после пересоздания данных
	// кэш не должен отдавать удаленные записи
	if s.redisUtil != nil {
		for _, key := range s.staleLatestCacheKeys() {
			if err := s.redisUtil.Delete(key); err != nil {
				log.Printf("⚠️ Не удалось сбросить кэш %s: %v", key, err)
			}
		}
	}

	// Очищаем таблицы (вместе с мягко удаленными записями)
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Measurement{}).Error; err != nil {
		return nil, fmt.Errorf("ошибка очистки замеров: %w", err)
	}
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Station{}).Error; err != nil {
		return nil, fmt.Errorf("ошибка очистки станций: %w", err)
	}
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.User{}).Error; err != nil {
		return nil, fmt.Errorf("ошибка очистки пользователей: %w", err)
	}

	// Демо-пользователи
	users := []struct {
		email, password, name, role string
	}{
		{"admin@weather.com", "admin123", "Admin User", "admin"},
		{"user@weather.com", "user123", "Test User", "user"},
	}
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
		}
		user := models.User{
			Email:        u.email,
			PasswordHash: string(hash),
			Name:         u.name,
			Role:         u.role,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("ошибка создания пользователя %s: %w", u.email, err)
		}
	}

	// Демо-станции
	stations := []models.Station{
		{
			Name:        "İstanbul Merkez",
			Location:    models.Location{Latitude: 41.0082, Longitude: 28.9784},
			City:        "İstanbul",
			Country:     "Türkiye",
			Description: "İstanbul merkez hava durumu istasyonu",
		},
		{
			Name:        "Ankara Merkez",
			Location:    models.Location{Latitude: 39.9334, Longitude: 32.8597},
			City:        "Ankara",
			Country:     "Türkiye",
			Description: "Ankara merkez hava durumu istasyonu",
		},
		{
			Name:        "İzmir Merkez",
			Location:    models.Location{Latitude: 38.4192, Longitude: 27.1287},
			City:        "İzmir",
			Country:     "Türkiye",
			Description: "İzmir merkez hava durumu istasyonu",
		},
		{
			Name:        "Antalya Merkez",
			Location:    models.Location{Latitude: 36.8969, Longitude: 30.7133},
			City:        "Antalya",
			Country:     "Türkiye",
			Description: "Antalya merkez hava durumu istasyonu",
		},
		{
			Name:        "Bursa Merkez",
			Location:    models.Location{Latitude: 40.1826, Longitude: 29.0665},
			City:        "Bursa",
			Country:     "Türkiye",
			Description: "Bursa merkez hava durumu istasyonu",
		},
	}
	for i := range stations {
		if err := s.db.Create(&stations[i]).Error; err != nil {
			return nil, fmt.Errorf("ошибка создания станции %s: %w", stations[i].Name, err)
		}
	}

	// 30 дней почасовых замеров для каждой станции
	var measurements []models.Measurement
	now := time.Now().UTC()

	for _, station := range stations {
		for day := 0; day < 30; day++ {
			date := now.AddDate(0, 0, -day)
			for hour := 0; hour < 24; hour++ {
				timestamp := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, time.UTC)

				baseTemp := baseTemperature(station.City, hour)
				measurements = append(measurements, models.Measurement{
					StationID:     station.ID,
					Temperature:   round1(baseTemp + (rand.Float64()-0.5)*4), // ±2°C вариация
					Humidity:      round1(40 + rand.Float64()*40),            // 40-80%
					WindSpeed:     round1(rand.Float64() * 20),               // 0-20 км/ч
					WindDirection: math.Round(rand.Float64() * 360),
					Pressure:      round1(1010 + (rand.Float64()-0.5)*20), // 1000-1020 гПа
					Timestamp:     timestamp,
				})
			}
		}
	}

	if err := s.db.CreateInBatches(measurements, 500).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания замеров: %w", err)
	}

	log.Printf("✅ Демо-данные созданы: %d пользователей, %d станций, %d замеров",
		len(users), len(stations), len(measurements))

	return &SeedResult{
		Users:        len(users),
		Stations:     len(stations),
		Measurements: len(measurements),
	}, nil
}

// staleLatestCacheKeys возвращает ключи кэша последних замеров всех станций
// в базе, включая мягко удаленные — их записи исчезнут при очистке
func (s *SeedService) staleLatestCacheKeys() []string {
	var ids []string
	if err := s.db.Unscoped().Model(&models.Station{}).Pluck("id", &ids).Error; err != nil {
		log.Printf("⚠️ Не удалось собрать станции для сброса кэша: %v", err)
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, latestCacheKey(id))
	}
	return keys
}

// baseTemperature возвращает базовую температуру города с суточным циклом
// (ночью холоднее, в полдень теплее)
func baseTemperature(city string, hour int) float64 {
	type tempRange struct{ min, max float64 }
	cityTemps := map[string]tempRange{
		"İstanbul": {8, 18},
		"Ankara":   {2, 15},
		"İzmir":    {10, 20},
		"Antalya":  {12, 22},
		"Bursa":    {6, 16},
	}

	t, ok := cityTemps[city]
	if !ok {
		t = tempRange{10, 20}
	}

	dailyCycle := math.Sin(float64(hour-6)*math.Pi/12)*0.5 + 0.5
	return t.min + (t.max-t.min)*dailyCycle
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
