package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"weatherdash/server/internal/models"
	"weatherdash/server/internal/services"
)

// StationPublisher — узкий интерфейс публикации изменений станций в живой канал
type StationPublisher interface {
	BroadcastStationUpdate(stationID string, station *models.Station)
}

// StationController управляет API endpoints справочника станций
type StationController struct {
	service   *services.StationService
	publisher StationPublisher
}

// NewStationController создает новый контроллер станций
func NewStationController(service *services.StationService, publisher StationPublisher) *StationController {
	return &StationController{service: service, publisher: publisher}
}

// CreateStationRequest представляет запрос на создание станции
type CreateStationRequest struct {
	Name        string          `json:"name" binding:"required"`
	Location    models.Location `json:"location" binding:"required"`
	City        string          `json:"city" binding:"required"`
	Country     string          `json:"country" binding:"required"`
	Description string          `json:"description"`
}

// GetStations возвращает список активных станций
// GET /api/v1/stations
func (sc *StationController) GetStations(c *gin.Context) {
	stations, err := sc.service.GetActiveStations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stations)
}

// GetStation возвращает станцию по ID
// GET /api/v1/stations/:id
func (sc *StationController) GetStation(c *gin.Context) {
	station, err := sc.service.GetStationByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrStationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, station)
}

// CreateStation создает новую станцию
// POST /api/v1/stations
func (sc *StationController) CreateStation(c *gin.Context) {
	var req CreateStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные станции",
			"details": err.Error(),
		})
		return
	}

	station := models.Station{
		Name:        req.Name,
		Location:    req.Location,
		City:        req.City,
		Country:     req.Country,
		Description: req.Description,
	}

	if err := sc.service.CreateStation(&station); err != nil {
		// Клиентские ошибки (валидация, занятое имя) — 400, ошибки хранилища — 500
		if errors.Is(err, services.ErrStationInvalid) || errors.Is(err, services.ErrStationNameTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, station)
}

// UpdateStation частично обновляет станцию и уведомляет ее комнату
// PATCH /api/v1/stations/:id
func (sc *StationController) UpdateStation(c *gin.Context) {
	var update services.StationUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные данные",
			"details": err.Error(),
		})
		return
	}

	station, err := sc.service.UpdateStation(c.Param("id"), &update)
	if err != nil {
		if errors.Is(err, services.ErrStationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, services.ErrStationInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sc.publisher.BroadcastStationUpdate(station.ID, station)

	c.JSON(http.StatusOK, station)
}

// DeleteStation удаляет станцию (мягкое удаление)
// DELETE /api/v1/stations/:id
func (sc *StationController) DeleteStation(c *gin.Context) {
	if err := sc.service.DeleteStation(c.Param("id")); err != nil {
		if errors.Is(err, services.ErrStationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Станция удалена"})
}
