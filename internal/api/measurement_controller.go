package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"weatherdash/server/internal/models"
	"weatherdash/server/internal/services"
)

// MeasurementPublisher — узкий интерфейс публикации замеров в живой канал.
// Путь приема зависит только от него, а не от всего хаба,
// чтобы не связывать контроллер и WebSocket слой в кольцо.
type MeasurementPublisher interface {
	BroadcastNewMeasurement(stationID string, m *models.Measurement)
}

// MeasurementController управляет API endpoints замеров
type MeasurementController struct {
	service   *services.MeasurementService
	publisher MeasurementPublisher
}

// NewMeasurementController создает новый контроллер замеров
func NewMeasurementController(service *services.MeasurementService, publisher MeasurementPublisher) *MeasurementController {
	return &MeasurementController{service: service, publisher: publisher}
}

// CreateMeasurementRequest представляет запрос на создание замера.
// Числовые поля — указатели: ноль (0°C, 0 мм осадков) — валидное значение
type CreateMeasurementRequest struct {
	StationID     string    `json:"stationId" binding:"required"`
	Temperature   *float64  `json:"temperature" binding:"required"`
	Humidity      *float64  `json:"humidity" binding:"required"`
	WindSpeed     *float64  `json:"windSpeed" binding:"required"`
	WindDirection *float64  `json:"windDirection" binding:"required"`
	Pressure      *float64  `json:"pressure" binding:"required"`
	UVIndex       *float64  `json:"uvIndex"`
	Precipitation *float64  `json:"precipitation"`
	Visibility    *float64  `json:"visibility"`
	Timestamp     time.Time `json:"timestamp"`
	Notes         string    `json:"notes"`
}

// CreateMeasurement сохраняет новый замер и рассылает его подписчикам.
// Запись и рассылка не атомарны: успешный ответ гарантирует сохранение,
// но не доставку всем подписчикам (REST остается источником истины).
// POST /api/v1/measurements
func (mc *MeasurementController) CreateMeasurement(c *gin.Context) {
	var req CreateMeasurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные замера",
			"details": err.Error(),
		})
		return
	}

	measurement := models.Measurement{
		StationID:     req.StationID,
		Temperature:   *req.Temperature,
		Humidity:      *req.Humidity,
		WindSpeed:     *req.WindSpeed,
		WindDirection: *req.WindDirection,
		Pressure:      *req.Pressure,
		UVIndex:       req.UVIndex,
		Precipitation: req.Precipitation,
		Visibility:    req.Visibility,
		Timestamp:     req.Timestamp,
		Notes:         req.Notes,
	}

	if err := mc.service.CreateMeasurement(&measurement); err != nil {
		if errors.Is(err, services.ErrStationNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Ровно одна попытка рассылки на успешную запись
	mc.publisher.BroadcastNewMeasurement(measurement.StationID, &measurement)

	c.JSON(http.StatusCreated, measurement)
}

// GetMeasurements возвращает все замеры
// GET /api/v1/measurements
func (mc *MeasurementController) GetMeasurements(c *gin.Context) {
	measurements, err := mc.service.GetAllMeasurements()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, measurements)
}

// GetLatestAllStations возвращает по одному свежему замеру на станцию
// GET /api/v1/measurements/latest
func (mc *MeasurementController) GetLatestAllStations(c *gin.Context) {
	measurements, err := mc.service.GetLatestAllStations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, measurements)
}

// GetMeasurementsByStation возвращает историю станции (от новых к старым)
// GET /api/v1/measurements/station/:stationId?limit=N
func (mc *MeasurementController) GetMeasurementsByStation(c *gin.Context) {
	stationID := c.Param("stationId")

	limit := services.DefaultHistoryLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	measurements, err := mc.service.GetMeasurementsByStation(stationID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, measurements)
}

// GetLatestByStation возвращает самый свежий замер станции
// GET /api/v1/measurements/station/:stationId/latest
func (mc *MeasurementController) GetLatestByStation(c *gin.Context) {
	stationID := c.Param("stationId")

	measurement, err := mc.service.GetLatestByStation(stationID)
	if err != nil {
		if errors.Is(err, services.ErrMeasurementNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, measurement)
}

// GetLatestDateByStation возвращает только время свежего замера станции
// GET /api/v1/measurements/station/:stationId/latest-date
func (mc *MeasurementController) GetLatestDateByStation(c *gin.Context) {
	stationID := c.Param("stationId")

	ts, err := mc.service.GetLatestDateByStation(stationID)
	if err != nil {
		if errors.Is(err, services.ErrMeasurementNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"timestamp": ts})
}

// GetMeasurementsByDateRange возвращает замеры станции за период (от старых к новым)
// GET /api/v1/measurements/station/:stationId/range?startDate=&endDate=
func (mc *MeasurementController) GetMeasurementsByDateRange(c *gin.Context) {
	stationID := c.Param("stationId")

	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный параметр startDate", "details": err.Error()})
		return
	}
	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный параметр endDate", "details": err.Error()})
		return
	}

	measurements, err := mc.service.GetMeasurementsByDateRange(stationID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, measurements)
}

// GetMeasurement возвращает замер по ID
// GET /api/v1/measurements/:id
func (mc *MeasurementController) GetMeasurement(c *gin.Context) {
	measurement, err := mc.service.GetMeasurementByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrMeasurementNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, measurement)
}

// UpdateMeasurement частично обновляет замер (административная корректировка)
// PATCH /api/v1/measurements/:id
func (mc *MeasurementController) UpdateMeasurement(c *gin.Context) {
	var update services.MeasurementUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	measurement, err := mc.service.UpdateMeasurement(c.Param("id"), &update)
	if err != nil {
		if errors.Is(err, services.ErrMeasurementNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, measurement)
}

// DeleteMeasurement удаляет замер
// DELETE /api/v1/measurements/:id
func (mc *MeasurementController) DeleteMeasurement(c *gin.Context) {
	if err := mc.service.DeleteMeasurement(c.Param("id")); err != nil {
		if errors.Is(err, services.ErrMeasurementNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Замер удален"})
}

// parseDate парсит дату из query-параметра: RFC3339 или просто YYYY-MM-DD
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
