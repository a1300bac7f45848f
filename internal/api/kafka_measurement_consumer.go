package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"weatherdash/server/internal/models"
	"weatherdash/server/internal/services"
)

// KafkaMeasurementConsumer читает замеры удаленных станций из Kafka
// и проводит их через тот же путь приема, что и REST: запись + рассылка
type KafkaMeasurementConsumer struct {
	topic     string
	groupID   string
	reader    *kafka.Reader
	ctx       context.Context
	cancel    context.CancelFunc
	service   *services.MeasurementService
	publisher MeasurementPublisher
	processed int64 // Счетчик обработанных замеров
	lastLog   int64 // Время последнего лога
}

// kafkaMeasurement — формат сообщения станции в топике
type kafkaMeasurement struct {
	StationID     string    `json:"stationId"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection float64   `json:"windDirection"`
	Pressure      float64   `json:"pressure"`
	UVIndex       *float64  `json:"uvIndex"`
	Precipitation *float64  `json:"precipitation"`
	Visibility    *float64  `json:"visibility"`
	Timestamp     time.Time `json:"timestamp"`
	Notes         string    `json:"notes"`
}

// NewKafkaMeasurementConsumer создает новый Kafka consumer замеров
func NewKafkaMeasurementConsumer(brokers, topic string, service *services.MeasurementService, publisher MeasurementPublisher, username, password, caCert string) *KafkaMeasurementConsumer {
	brokerList := parseKafkaBrokers(brokers)
	ctx, cancel := context.WithCancel(context.Background())

	const groupID = "weather-ingest-group"

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokerList,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset, // История уже в БД, читаем только новые замеры
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      createKafkaDialer(username, password, caCert),
	})

	return &KafkaMeasurementConsumer{
		topic:     topic,
		groupID:   groupID,
		reader:    reader,
		ctx:       ctx,
		cancel:    cancel,
		service:   service,
		publisher: publisher,
		lastLog:   time.Now().Unix(),
	}
}

// Start запускает чтение замеров из Kafka
func (kc *KafkaMeasurementConsumer) Start() {
	log.Printf("📡 Kafka consumer замеров запущен: topic=%s, groupID=%s", kc.topic, kc.groupID)

	go func() {
		for {
			select {
			case <-kc.ctx.Done():
				log.Println("🛑 Kafka consumer замеров остановлен")
				return
			default:
				msg, err := kc.reader.ReadMessage(kc.ctx)
				if err != nil {
					if isCanceled(err) {
						return
					}
					log.Printf("⚠️ Kafka consumer ошибка чтения: %v", err)
					time.Sleep(1 * time.Second)
					continue
				}

				var payload kafkaMeasurement
				if err := json.Unmarshal(msg.Value, &payload); err != nil {
					// Не логируем каждую ошибку парсинга, чтобы не спамить
					continue
				}

				measurement := models.Measurement{
					StationID:     payload.StationID,
					Temperature:   payload.Temperature,
					Humidity:      payload.Humidity,
					WindSpeed:     payload.WindSpeed,
					WindDirection: payload.WindDirection,
					Pressure:      payload.Pressure,
					UVIndex:       payload.UVIndex,
					Precipitation: payload.Precipitation,
					Visibility:    payload.Visibility,
					Timestamp:     payload.Timestamp,
					Notes:         payload.Notes,
				}

				// Тот же контракт, что и у REST: без записи нет рассылки
				if err := kc.service.CreateMeasurement(&measurement); err != nil {
					log.Printf("⚠️ Kafka consumer: замер станции %s не сохранен: %v", payload.StationID, err)
					continue
				}

				kc.publisher.BroadcastNewMeasurement(measurement.StationID, &measurement)

				// Логируем прогресс раз в 5 секунд
				processed := atomic.AddInt64(&kc.processed, 1)
				now := time.Now().Unix()
				if now-atomic.LoadInt64(&kc.lastLog) >= 5 {
					atomic.StoreInt64(&kc.lastLog, now)
					log.Printf("📊 Kafka consumer: обработано %d замеров", processed)
				}
			}
		}
	}()
}

// Stop останавливает Kafka consumer
func (kc *KafkaMeasurementConsumer) Stop() {
	kc.cancel()
	if kc.reader != nil {
		kc.reader.Close()
	}
	log.Println("🛑 Kafka consumer замеров остановлен")
}

// createKafkaDialer создает dialer с поддержкой SASL/PLAIN и TLS (для managed Kafka)
func createKafkaDialer(username, password, caCert string) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	if username != "" && password != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: username,
			Password: password,
		}
		log.Printf("🔐 Kafka: SASL/PLAIN аутентификация включена (username: %s)", username)
	}

	tlsConfig := &tls.Config{}
	if caCert != "" {
		caCertPool := x509.NewCertPool()
		if ok := caCertPool.AppendCertsFromPEM([]byte(caCert)); ok {
			tlsConfig.RootCAs = caCertPool
			log.Printf("🔒 Kafka: TLS с CA сертификатом включен")
		} else {
			log.Printf("⚠️ Kafka: не удалось распарсить CA сертификат, используем системные сертификаты")
		}
	}

	// Managed Kafka требует TLS для SASL
	if dialer.SASLMechanism != nil || caCert != "" {
		dialer.TLS = tlsConfig
	}

	return dialer
}

// isCanceled распознает отмену контекста и в обернутых ошибках:
// kafka-go может вернуть ее не напрямую
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// parseKafkaBrokers парсит строку с брокерами (через запятую)
func parseKafkaBrokers(brokers string) []string {
	var result []string
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
