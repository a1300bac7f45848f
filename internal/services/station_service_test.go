package services

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"weatherdash/server/internal/models"
)

// openTestDB создает изолированную in-memory SQLite базу для одного теста
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("не удалось открыть тестовую базу: %v", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("не удалось применить миграции: %v", err)
	}

	return db
}

// createTestStation создает станцию с валидными координатами
func createTestStation(t *testing.T, s *StationService, name string) *models.Station {
	t.Helper()

	station := &models.Station{
		Name:     name,
		Location: models.Location{Latitude: 41.0082, Longitude: 28.9784},
		City:     "İstanbul",
		Country:  "Türkiye",
	}
	if err := s.CreateStation(station); err != nil {
		t.Fatalf("не удалось создать станцию %s: %v", name, err)
	}
	return station
}

func TestCreateStationValidatesCoordinates(t *testing.T) {
	service := NewStationService(openTestDB(t))

	cases := []struct {
		name string
		loc  models.Location
	}{
		{"широта выше диапазона", models.Location{Latitude: 91, Longitude: 0}},
		{"широта ниже диапазона", models.Location{Latitude: -91, Longitude: 0}},
		{"долгота выше диапазона", models.Location{Latitude: 0, Longitude: 181}},
		{"долгота ниже диапазона", models.Location{Latitude: 0, Longitude: -181}},
	}

	for _, tc := range cases {
		station := &models.Station{
			Name:     "Станция " + tc.name,
			Location: tc.loc,
			City:     "Ankara",
			Country:  "Türkiye",
		}
		// Ошибка валидации помечена сентинелом, чтобы контроллер отдал 400, а не 500
		if err := service.CreateStation(station); !errors.Is(err, ErrStationInvalid) {
			t.Errorf("%s: ожидали ErrStationInvalid для %v, получили %v", tc.name, tc.loc, err)
		}
	}

	// Граничные значения валидны
	ok := &models.Station{
		Name:     "Граничная станция",
		Location: models.Location{Latitude: 90, Longitude: -180},
		City:     "Ankara",
		Country:  "Türkiye",
	}
	if err := service.CreateStation(ok); err != nil {
		t.Errorf("граничные координаты должны проходить валидацию: %v", err)
	}
}

func TestCreateStationRequiresName(t *testing.T) {
	service := NewStationService(openTestDB(t))

	station := &models.Station{
		Location: models.Location{Latitude: 40, Longitude: 30},
		City:     "İzmir",
		Country:  "Türkiye",
	}
	if err := service.CreateStation(station); !errors.Is(err, ErrStationInvalid) {
		t.Fatalf("станция без имени: ожидали ErrStationInvalid, получили %v", err)
	}
}

func TestCreateStationDuplicateName(t *testing.T) {
	service := NewStationService(openTestDB(t))
	createTestStation(t, service, "İstanbul Merkez")

	dup := &models.Station{
		Name:     "İstanbul Merkez",
		Location: models.Location{Latitude: 41, Longitude: 29},
		City:     "İstanbul",
		Country:  "Türkiye",
	}
	err := service.CreateStation(dup)
	if !errors.Is(err, ErrStationNameTaken) {
		t.Fatalf("ожидали ErrStationNameTaken, получили %v", err)
	}
}

func TestGetActiveStationsExcludesInactive(t *testing.T) {
	service := NewStationService(openTestDB(t))

	active := createTestStation(t, service, "Активная")
	inactive := createTestStation(t, service, "Выключенная")

	off := false
	if _, err := service.UpdateStation(inactive.ID, &StationUpdate{IsActive: &off}); err != nil {
		t.Fatalf("не удалось выключить станцию: %v", err)
	}

	stations, err := service.GetActiveStations()
	if err != nil {
		t.Fatalf("GetActiveStations: %v", err)
	}
	if len(stations) != 1 {
		t.Fatalf("ожидали 1 активную станцию, получили %d", len(stations))
	}
	if stations[0].ID != active.ID {
		t.Errorf("в списке не та станция: %s", stations[0].Name)
	}
}

func TestUpdateStationPartialPatch(t *testing.T) {
	service := NewStationService(openTestDB(t))
	station := createTestStation(t, service, "До обновления")

	newName := "После обновления"
	newLoc := models.Location{Latitude: 39.9334, Longitude: 32.8597}
	updated, err := service.UpdateStation(station.ID, &StationUpdate{
		Name:     &newName,
		Location: &newLoc,
	})
	if err != nil {
		t.Fatalf("UpdateStation: %v", err)
	}

	if updated.Name != newName {
		t.Errorf("имя = %q, ожидали %q", updated.Name, newName)
	}
	if updated.Location.Latitude != newLoc.Latitude || updated.Location.Longitude != newLoc.Longitude {
		t.Errorf("координаты = %+v, ожидали %+v", updated.Location, newLoc)
	}
	// Непереданные поля не трогаем
	if updated.City != station.City {
		t.Errorf("город изменился без запроса: %q", updated.City)
	}

	// Невалидные координаты в обновлении отклоняются
	bad := models.Location{Latitude: 100, Longitude: 0}
	if _, err := service.UpdateStation(station.ID, &StationUpdate{Location: &bad}); !errors.Is(err, ErrStationInvalid) {
		t.Errorf("обновление с невалидными координатами: ожидали ErrStationInvalid, получили %v", err)
	}
}

func TestUpdateStationNotFound(t *testing.T) {
	service := NewStationService(openTestDB(t))

	name := "Призрак"
	_, err := service.UpdateStation("00000000-0000-0000-0000-000000000000", &StationUpdate{Name: &name})
	if !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("ожидали ErrStationNotFound, получили %v", err)
	}
}

func TestDeleteStationSoft(t *testing.T) {
	db := openTestDB(t)
	service := NewStationService(db)
	station := createTestStation(t, service, "На удаление")

	if err := service.DeleteStation(station.ID); err != nil {
		t.Fatalf("DeleteStation: %v", err)
	}

	if _, err := service.GetStationByID(station.ID); !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("после удаления ожидали ErrStationNotFound, получили %v", err)
	}

	// Мягкое удаление: запись остается в таблице
	var count int64
	if err := db.Unscoped().Model(&models.Station{}).Where("id = ?", station.ID).Count(&count).Error; err != nil {
		t.Fatalf("подсчет записей: %v", err)
	}
	if count != 1 {
		t.Errorf("запись должна остаться после мягкого удаления, в таблице %d", count)
	}

	if err := service.DeleteStation(station.ID); !errors.Is(err, ErrStationNotFound) {
		t.Errorf("повторное удаление: ожидали ErrStationNotFound, получили %v", err)
	}
}
