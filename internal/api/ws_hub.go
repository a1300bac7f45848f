package api

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"weatherdash/server/internal/models"
)

// Client представляет одно живое WebSocket подключение.
// Сообщения кладутся в буферизованный канал send и уходят клиенту
// через writePump — публикующая сторона никогда не ждет медленного клиента.
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// writePump отправляет сообщения из канала send в соединение.
// Завершается при закрытии канала (RemoveClient).
func (c *Client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
	c.conn.Close()
}

// Hub управляет живыми подключениями и комнатами станций.
// Создается один раз на процесс и передается в контроллеры явно.
type Hub struct {
	mutex   sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool // stationID -> подписчики
}

// NewHub создает новый хаб без подключений
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
	}
}

// wsEnvelope — конверт всех сообщений сервер→клиент
type wsEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// AddClient регистрирует новое подключение (без подписок)
func (h *Hub) AddClient(conn *websocket.Conn) *Client {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 64), // Буфер на клиента: отстающий клиент теряет сообщения, а не тормозит публикацию
	}
	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()
	return client
}

// RemoveClient удаляет клиента и все его подписки. Идемпотентен:
// повторный вызов для уже удаленного клиента ничего не делает.
func (h *Hub) RemoveClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client] {
		return
	}
	delete(h.clients, client)

	// Подписки освобождаются сразу, пустые комнаты удаляются
	for stationID, room := range h.rooms {
		if room[client] {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, stationID)
			}
		}
	}

	close(client.send)
}

// JoinStation подписывает клиента на комнату станции
func (h *Hub) JoinStation(client *Client, stationID string) {
	if stationID == "" {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client] {
		return
	}
	room := h.rooms[stationID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[stationID] = room
	}
	room[client] = true
}

// LeaveStation отписывает клиента от комнаты станции (no-op, если не подписан)
func (h *Hub) LeaveStation(client *Client, stationID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room := h.rooms[stationID]
	if room == nil {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, stationID)
	}
}

// BroadcastNewMeasurement доставляет замер подписчикам станции (newMeasurement)
// и всем подключенным клиентам для карты (mapUpdate).
// Доставка fire-and-forget: ошибки отдельных клиентов не всплывают к публикатору.
func (h *Hub) BroadcastNewMeasurement(stationID string, m *models.Measurement) {
	roomMsg, err := json.Marshal(wsEnvelope{Event: "newMeasurement", Data: m})
	if err != nil {
		log.Printf("⚠️ Ошибка маршалинга newMeasurement: %v", err)
		return
	}
	mapMsg, err := json.Marshal(wsEnvelope{Event: "mapUpdate", Data: m})
	if err != nil {
		log.Printf("⚠️ Ошибка маршалинга mapUpdate: %v", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.rooms[stationID] {
		client.enqueue(roomMsg)
	}
	for client := range h.clients {
		client.enqueue(mapMsg)
	}
}

// BroadcastStationUpdate уведомляет комнату станции об изменении ее метаданных
func (h *Hub) BroadcastStationUpdate(stationID string, station *models.Station) {
	msg, err := json.Marshal(wsEnvelope{Event: "station_update", Data: station})
	if err != nil {
		log.Printf("⚠️ Ошибка маршалинга station_update: %v", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.rooms[stationID] {
		client.enqueue(msg)
	}
}

// enqueue кладет сообщение в канал клиента без блокировки.
// Если буфер переполнен, сообщение отбрасывается.
func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// ClientsCount возвращает количество подключенных клиентов
func (h *Hub) ClientsCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// SubscribersCount возвращает количество подписчиков комнаты станции
func (h *Hub) SubscribersCount(stationID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[stationID])
}
