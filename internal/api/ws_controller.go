package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Разрешаем подключения с любого origin (для разработки)
		// В продакшене лучше проверять конкретные домены
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSController обслуживает живые подключения дашборда
type WSController struct {
	hub *Hub
}

// NewWSController создает новый WebSocket контроллер
func NewWSController(hub *Hub) *WSController {
	return &WSController{hub: hub}
}

// wsClientMessage — сообщение клиент→сервер (подписка/отписка от станции)
type wsClientMessage struct {
	Event     string `json:"event"`
	StationID string `json:"stationId"`
}

// ServeWS обрабатывает WebSocket подключения дашборда
// GET /api/v1/ws
func (wc *WSController) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ Ошибка обновления WebSocket соединения: %v", err)
		return
	}

	client := wc.hub.AddClient(conn)
	go client.writePump()
	log.Printf("🔌 Клиент подключен. Всего подключений: %d", wc.hub.ClientsCount())

	// Отключение — единственный сигнал отмены: освобождаем все подписки сразу
	defer func() {
		wc.hub.RemoveClient(client)
		log.Printf("🔌 Клиент отключен. Осталось подключений: %d", wc.hub.ClientsCount())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ WebSocket ошибка: %v", err)
			}
			break
		}

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Неизвестные сообщения (ping и т.п.) игнорируем
			continue
		}

		switch msg.Event {
		case "join_station":
			wc.hub.JoinStation(client, msg.StationID)
			log.Printf("📡 Клиент подписался на станцию %s (%d подписчиков)",
				msg.StationID, wc.hub.SubscribersCount(msg.StationID))
		case "leave_station":
			wc.hub.LeaveStation(client, msg.StationID)
			log.Printf("📡 Клиент отписался от станции %s (%d подписчиков)",
				msg.StationID, wc.hub.SubscribersCount(msg.StationID))
		}
	}
}
