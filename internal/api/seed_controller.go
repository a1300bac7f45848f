package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"weatherdash/server/internal/services"
)

// SeedController наполняет базу демо-данными
type SeedController struct {
	service *services.SeedService
}

// NewSeedController создает новый контроллер демо-данных
func NewSeedController(service *services.SeedService) *SeedController {
	return &SeedController{service: service}
}

// Seed очищает базу и создает демо-данные
// POST /api/v1/seed (и GET для удобства из браузера)
func (sc *SeedController) Seed(c *gin.Context) {
	result, err := sc.service.Seed()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
