package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"weatherdash/server/internal/models"
	"weatherdash/server/internal/services"
)

const testSecret = "test-secret"

// recordingPublisher записывает вызовы рассылки вместо реального хаба
type recordingPublisher struct {
	measurements []*models.Measurement
	stations     []*models.Station
}

func (p *recordingPublisher) BroadcastNewMeasurement(stationID string, m *models.Measurement) {
	p.measurements = append(p.measurements, m)
}

func (p *recordingPublisher) BroadcastStationUpdate(stationID string, station *models.Station) {
	p.stations = append(p.stations, station)
}

// setupTestRouter поднимает роутер с in-memory базой и стабом рассылки
func setupTestRouter(t *testing.T) (*gin.Engine, *recordingPublisher, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	publisher := &recordingPublisher{}
	stationController := NewStationController(services.NewStationService(db), publisher)
	measurementController := NewMeasurementController(services.NewMeasurementService(db, nil), publisher)
	authController := NewAuthController(db, testSecret)

	r := gin.New()
	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/login", authController.Login)
		v1.POST("/auth/register", authController.Register)

		v1.GET("/stations", stationController.GetStations)
		v1.POST("/stations", AuthRequired(testSecret), stationController.CreateStation)
		v1.PATCH("/stations/:id", AuthRequired(testSecret), stationController.UpdateStation)

		v1.POST("/measurements", AuthRequired(testSecret), measurementController.CreateMeasurement)
		v1.GET("/measurements/station/:stationId/latest", measurementController.GetLatestByStation)
	}
	return r, publisher, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("не удалось сериализовать тело запроса: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// registerAndLogin создает пользователя и возвращает его bearer-токен
func registerAndLogin(t *testing.T, r *gin.Engine) string {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "operator@weather.com",
		"password": "operator123",
		"name":     "Оператор",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("регистрация: код %d, тело %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "operator@weather.com",
		"password": "operator123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("вход: код %d, тело %s", w.Code, w.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("не удалось распарсить ответ входа: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("токен пустой")
	}
	return resp.AccessToken
}

func createStationViaAPI(t *testing.T, r *gin.Engine, token string) models.Station {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/v1/stations", token, gin.H{
		"name":     "İstanbul Merkez",
		"location": gin.H{"latitude": 41.0082, "longitude": 28.9784},
		"city":     "İstanbul",
		"country":  "Türkiye",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("создание станции: код %d, тело %s", w.Code, w.Body.String())
	}

	var station models.Station
	if err := json.Unmarshal(w.Body.Bytes(), &station); err != nil {
		t.Fatalf("не удалось распарсить станцию: %v", err)
	}
	return station
}

// TestIngestFlow проверяет полный путь приема: регистрация, вход, создание
// станции, POST замера с рассылкой, чтение последнего замера
func TestIngestFlow(t *testing.T) {
	r, publisher, _ := setupTestRouter(t)

	token := registerAndLogin(t, r)
	station := createStationViaAPI(t, r, token)

	w := doJSON(t, r, http.MethodPost, "/api/v1/measurements", token, gin.H{
		"stationId":     station.ID,
		"temperature":   18.5,
		"humidity":      60,
		"windSpeed":     12,
		"windDirection": 90,
		"pressure":      1012,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("создание замера: код %d, тело %s", w.Code, w.Body.String())
	}

	var created models.Measurement
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("не удалось распарсить замер: %v", err)
	}
	if created.Temperature != 18.5 || created.StationID != station.ID {
		t.Errorf("ответ не совпадает с запросом: %+v", created)
	}

	// Ровно одна рассылка на успешную запись, с теми же данными
	if len(publisher.measurements) != 1 {
		t.Fatalf("ожидали 1 рассылку, получили %d", len(publisher.measurements))
	}
	broadcast := publisher.measurements[0]
	if broadcast.ID != created.ID || broadcast.Temperature != 18.5 || broadcast.WindSpeed != 12 {
		t.Errorf("рассылка не совпадает с сохраненным замером: %+v", broadcast)
	}

	// Последний замер станции — только что созданный
	w = doJSON(t, r, http.MethodGet, "/api/v1/measurements/station/"+station.ID+"/latest", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("последний замер: код %d, тело %s", w.Code, w.Body.String())
	}
	var latest models.Measurement
	if err := json.Unmarshal(w.Body.Bytes(), &latest); err != nil {
		t.Fatalf("не удалось распарсить последний замер: %v", err)
	}
	if latest.ID != created.ID {
		t.Errorf("последний замер %s, ожидали %s", latest.ID, created.ID)
	}
}

func TestLoginUpdatesLastLogin(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "viewer@weather.com",
		"password": "viewer123",
		"name":     "Наблюдатель",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("регистрация: код %d, тело %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "viewer@weather.com",
		"password": "viewer123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("вход: код %d, тело %s", w.Code, w.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("не удалось распарсить ответ входа: %v", err)
	}
	if resp.User == nil || resp.User.LastLoginAt == nil {
		t.Fatal("время последнего входа должно записываться при успешном входе")
	}
}

func TestCreateMeasurementUnknownStation(t *testing.T) {
	r, publisher, _ := setupTestRouter(t)
	token := registerAndLogin(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/measurements", token, gin.H{
		"stationId":     "00000000-0000-0000-0000-000000000000",
		"temperature":   18.5,
		"humidity":      60,
		"windSpeed":     12,
		"windDirection": 90,
		"pressure":      1012,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("неизвестная станция: код %d, ожидали 400", w.Code)
	}
	// Несохраненный замер не рассылается
	if len(publisher.measurements) != 0 {
		t.Errorf("рассылка без записи: %d вызовов", len(publisher.measurements))
	}
}

func TestCreateMeasurementValidation(t *testing.T) {
	r, _, _ := setupTestRouter(t)
	token := registerAndLogin(t, r)
	station := createStationViaAPI(t, r, token)

	// Без обязательного поля pressure
	w := doJSON(t, r, http.MethodPost, "/api/v1/measurements", token, gin.H{
		"stationId":     station.ID,
		"temperature":   18.5,
		"humidity":      60,
		"windSpeed":     12,
		"windDirection": 90,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("замер без pressure: код %d, ожидали 400", w.Code)
	}

	// Ноль — валидное значение, указатели в запросе не считают его пропуском
	w = doJSON(t, r, http.MethodPost, "/api/v1/measurements", token, gin.H{
		"stationId":     station.ID,
		"temperature":   0,
		"humidity":      60,
		"windSpeed":     0,
		"windDirection": 0,
		"pressure":      1012,
	})
	if w.Code != http.StatusCreated {
		t.Errorf("нулевая температура должна приниматься: код %d, тело %s", w.Code, w.Body.String())
	}
}

func TestCreateMeasurementRequiresAuth(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/measurements", "", gin.H{
		"stationId":     "s1",
		"temperature":   18.5,
		"humidity":      60,
		"windSpeed":     12,
		"windDirection": 90,
		"pressure":      1012,
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("без токена: код %d, ожидали 401", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/measurements", "подделанный.токен.abc", gin.H{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("с поддельным токеном: код %d, ожидали 401", w.Code)
	}
}

func TestUpdateStationBroadcastsToRoom(t *testing.T) {
	r, publisher, _ := setupTestRouter(t)
	token := registerAndLogin(t, r)
	station := createStationViaAPI(t, r, token)

	w := doJSON(t, r, http.MethodPatch, "/api/v1/stations/"+station.ID, token, gin.H{
		"description": "Перенесена на крышу",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("обновление станции: код %d, тело %s", w.Code, w.Body.String())
	}

	if len(publisher.stations) != 1 {
		t.Fatalf("ожидали 1 уведомление station_update, получили %d", len(publisher.stations))
	}
	if publisher.stations[0].Description != "Перенесена на крышу" {
		t.Errorf("в уведомлении старые данные: %+v", publisher.stations[0])
	}
}
