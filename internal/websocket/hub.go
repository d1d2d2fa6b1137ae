package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"autotrader/internal/models"
	"autotrader/internal/news"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул буферов сериализации, Broadcast вызывается на каждом тике мониторинга
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями.
//
// Единственный писатель в каналы клиентов: регистрация, отключение
// и рассылка сериализуются главным циклом Run. Клиент, не успевающий
// читать, отключается, а не тормозит остальных.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	dropped atomic.Uint64

	log *zap.SugaredLogger
	mu  sync.RWMutex
}

// NewHub создает hub. Run запускается отдельно: go hub.Run()
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run - главный цикл hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugw("websocket client connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugw("websocket client disconnected", "total", total)

		case message := <-h.broadcast:
			// Список копируется под коротким RLock, отправка идет
			// без блокировки, медленные клиенты удаляются после
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warnw("slow websocket clients removed", "removed", len(toRemove), "total", total)
			}
		}
	}
}

// Broadcast сериализует сообщение и рассылает всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Errorw("broadcast message marshal failed", "error", err)
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	// Broadcast не должен тормозить цикл торговли: при заполненной
	// очереди сообщение отбрасывается
	select {
	case h.broadcast <- msgCopy:
	default:
		h.dropped.Add(1)
	}
}

// Stop останавливает главный цикл и отключает всех клиентов
func (h *Hub) Stop() {
	close(h.done)
}

// DroppedMessages возвращает число отброшенных сообщений
func (h *Hub) DroppedMessages() uint64 {
	return h.dropped.Load()
}

// BroadcastTradeOpened рассылает открытие сделки
func (h *Hub) BroadcastTradeOpened(trade *models.Trade) {
	h.Broadcast(NewTradeOpenedMessage(trade))
}

// BroadcastTradeUpdate рассылает текущее состояние открытой сделки
func (h *Hub) BroadcastTradeUpdate(trade *models.Trade, mark float64) {
	h.Broadcast(NewTradeUpdateMessage(trade, mark))
}

// BroadcastTradeClosed рассылает завершение сделки
func (h *Hub) BroadcastTradeClosed(trade *models.Trade) {
	h.Broadcast(NewTradeClosedMessage(trade))
}

// BroadcastRiskEvent рассылает событие риск-контроля
func (h *Hub) BroadcastRiskEvent(event *models.RiskEvent) {
	h.Broadcast(NewRiskEventMessage(event))
}

// BroadcastSessionStatus рассылает изменение статуса сессии
func (h *Hub) BroadcastSessionStatus(session *models.Session) {
	h.Broadcast(NewSessionStatusMessage(session))
}

// BroadcastSentiment рассылает обновление новостного фона
func (h *Hub) BroadcastSentiment(snap *news.Snapshot) {
	h.Broadcast(NewSentimentMessage(snap))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
