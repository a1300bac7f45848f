package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"weatherdash/server/internal/api"
	"weatherdash/server/internal/config"
	"weatherdash/server/internal/database"
	"weatherdash/server/internal/models"
	"weatherdash/server/internal/services"
	"weatherdash/server/internal/utils"
)

func main() {
	// Загружаем .env файл (не критично, если его нет)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env файл не найден, используем переменные окружения")
	}

	cfg := config.Load()

	// PostgreSQL обязателен: без базы серверу нечего отдавать
	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к PostgreSQL: %v", err)
	}
	defer database.ClosePostgres(db)
	log.Println("✅ PostgreSQL подключен")

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Ошибка миграции базы данных: %v", err)
	}
	log.Println("✅ Миграции применены")

	// Redis опционален: без него просто не работает кеш последних замеров
	var redisUtil *utils.RedisClient
	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName)
	if err != nil {
		log.Printf("⚠️ Redis недоступен, кеширование отключено: %v", err)
	} else {
		redisUtil = utils.NewRedisClient(redisClient)
		defer database.CloseRedis(redisClient)
		log.Println("✅ Redis подключен")
	}

	// Сервисы
	stationService := services.NewStationService(db)
	measurementService := services.NewMeasurementService(db, redisUtil)
	seedService := services.NewSeedService(db, redisUtil)

	// WebSocket hub и контроллеры
	hub := api.NewHub()
	wsController := api.NewWSController(hub)
	stationController := api.NewStationController(stationService, hub)
	measurementController := api.NewMeasurementController(measurementService, hub)
	authController := api.NewAuthController(db, cfg.JWTSecret)
	seedController := api.NewSeedController(seedService)

	// Kafka consumer замеров удаленных станций (опционален)
	if cfg.KafkaBrokers != "" {
		consumer := api.NewKafkaMeasurementConsumer(
			cfg.KafkaBrokers, cfg.KafkaTopic,
			measurementService, hub,
			cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert,
		)
		consumer.Start()
		defer consumer.Stop()
	} else {
		log.Println("⚠️ KAFKA_BROKERS не задан, прием замеров из Kafka отключен")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(api.CORS(cfg.CORSOrigins))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":      "ok",
				"environment": cfg.Environment,
				"wsClients":   hub.ClientsCount(),
			})
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/login", authController.Login)
			auth.POST("/register", authController.Register)
			auth.POST("/profile", api.AuthRequired(cfg.JWTSecret), authController.Profile)
		}

		stations := v1.Group("/stations")
		{
			stations.GET("", stationController.GetStations)
			stations.GET("/:id", stationController.GetStation)
			stations.POST("", api.AuthRequired(cfg.JWTSecret), stationController.CreateStation)
			stations.PATCH("/:id", api.AuthRequired(cfg.JWTSecret), stationController.UpdateStation)
			stations.DELETE("/:id", api.AuthRequired(cfg.JWTSecret), stationController.DeleteStation)
		}

		measurements := v1.Group("/measurements")
		{
			measurements.POST("", api.AuthRequired(cfg.JWTSecret), measurementController.CreateMeasurement)
			measurements.GET("", measurementController.GetMeasurements)
			measurements.GET("/latest", measurementController.GetLatestAllStations)
			measurements.GET("/station/:stationId", measurementController.GetMeasurementsByStation)
			measurements.GET("/station/:stationId/latest", measurementController.GetLatestByStation)
			measurements.GET("/station/:stationId/latest-date", measurementController.GetLatestDateByStation)
			measurements.GET("/station/:stationId/range", measurementController.GetMeasurementsByDateRange)
			measurements.GET("/:id", measurementController.GetMeasurement)
			measurements.PATCH("/:id", api.AuthRequired(cfg.JWTSecret), measurementController.UpdateMeasurement)
			measurements.DELETE("/:id", api.AuthRequired(cfg.JWTSecret), measurementController.DeleteMeasurement)
		}

		// Наполнение демо-данными (GET оставлен для запуска из браузера)
		v1.POST("/seed", seedController.Seed)
		v1.GET("/seed", seedController.Seed)

		v1.GET("/ws", wsController.ServeWS)
	}

	log.Printf("🚀 Сервер запущен на порту %s (env: %s)", cfg.ServerPort, cfg.Environment)
	if err := r.Run("0.0.0.0:" + cfg.ServerPort); err != nil {
		log.Fatalf("❌ Ошибка запуска сервера: %v", err)
	}
}

// requestLogger логирует HTTP запросы в едином формате
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("📥 %s %s | %d | %v",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
