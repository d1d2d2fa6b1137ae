package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"autotrader/internal/api/handlers"
	"autotrader/internal/api/middleware"
	"autotrader/internal/config"
	"autotrader/internal/news"
	"autotrader/internal/repository"
	"autotrader/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Engine   handlers.BotEngine
	Store    *repository.Store
	News     *news.Service
	Hub      *websocket.Hub
	Security config.SecurityConfig
	Log      *zap.SugaredLogger

	// Stop инициирует остановку сессии (POST /api/v1/stop).
	// nil отключает endpoint.
	Stop func(emergency bool)
}

// SetupRoutes настраивает все HTTP маршруты приложения.
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── GET /status - живое состояние бота
//	├── POST /stop - остановка сессии (штатная или аварийная)
//	├── GET /session - активная сессия со сделками и риск-событиями
//	├── GET /sessions - последние сессии
//	├── GET /trades - история сделок
//	├── GET /performance - сводка результатов
//	└── GET /risk - журнал риск-событий
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /health - проверка живости (включая ping БД)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. BasicAuth (только для /api/v1, если заданы credentials)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.Logging(deps.Log))
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BasicAuth(deps.Security.DashboardUser, deps.Security.DashboardPassword))

	if deps.Engine != nil {
		statusHandler := handlers.NewStatusHandler(deps.Engine, deps.News)
		api.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")

		if deps.Stop != nil {
			controlHandler := handlers.NewControlHandler(deps.Engine, deps.Stop)
			api.HandleFunc("/stop", controlHandler.PostStop).Methods("POST")
		}
	}

	if deps.Store != nil {
		sessionHandler := handlers.NewSessionHandler(deps.Store.Sessions, deps.Store.Trades, deps.Store.RiskEvents)
		api.HandleFunc("/session", sessionHandler.GetSession).Methods("GET")
		api.HandleFunc("/sessions", sessionHandler.GetSessions).Methods("GET")

		tradeHandler := handlers.NewTradeHandler(deps.Store.Trades)
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")

		performanceHandler := handlers.NewPerformanceHandler(deps.Store.Performance)
		api.HandleFunc("/performance", performanceHandler.GetPerformance).Methods("GET")

		riskHandler := handlers.NewRiskHandler(deps.Store.RiskEvents)
		api.HandleFunc("/risk", riskHandler.GetRiskEvents).Methods("GET")
	}

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			if err := deps.Store.DB().Ping(); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
