package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах

// ============ Счётчики событий ============

// TradesTotal - количество закрытых сделок
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of completed trades",
	},
	[]string{"symbol", "result"}, // result: win, loss, cancelled, error
)

// DecisionRequests - запросы к провайдеру решений
var DecisionRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "decision",
		Name:      "requests_total",
		Help:      "Total number of decision provider requests",
	},
	[]string{"provider", "outcome"}, // outcome: ok, error, malformed
)

// RiskRejections - отказы риск-контроля по типам проверок
var RiskRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "risk",
		Name:      "rejections_total",
		Help:      "Total number of risk gate rejections",
	},
	[]string{"check"}, // can_start, position_size, stop_loss
)

// RiskEventsTotal - записанные риск-события по важности
var RiskEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "risk",
		Name:      "events_total",
		Help:      "Total number of recorded risk events",
	},
	[]string{"severity"},
)

// EmergencyCloseFailures - неудачные попытки аварийного закрытия
var EmergencyCloseFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "emergency_close_failures_total",
		Help:      "Total number of failed emergency close attempts",
	},
)

// ============ Метрики латентности ============

// MonitorCycleDuration - длительность одного цикла мониторинга
var MonitorCycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "monitor_cycle_duration_seconds",
		Help:      "Duration of one monitoring cycle in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
)

// OrderExecutionLatency - время исполнения ордера на бирже
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "order_execution_latency_ms",
		Help:      "Time to execute order on exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"side"},
)

// ============ Метрики состояния ============

// OpenPosition - 1 если есть открытая позиция
var OpenPosition = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "open_position",
		Help:      "Whether a position is currently open (0 or 1)",
	},
)

// DailyPnl - накопленный дневной PnL в USDT
var DailyPnl = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autotrader",
		Subsystem: "risk",
		Name:      "daily_pnl_usdt",
		Help:      "Accumulated daily PnL in USDT",
	},
)

// EmergencyStopActive - взведена ли защелка аварийной остановки
var EmergencyStopActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autotrader",
		Subsystem: "risk",
		Name:      "emergency_stop_active",
		Help:      "Whether the daily loss emergency latch is set (0 or 1)",
	},
)

// NewsSentiment - текущий сентимент новостного фона [-1, 1]
var NewsSentiment = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autotrader",
		Subsystem: "news",
		Name:      "sentiment_score",
		Help:      "Current news sentiment score in [-1, 1]",
	},
)
