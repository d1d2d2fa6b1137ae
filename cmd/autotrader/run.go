package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autotrader/internal/api"
	"autotrader/internal/bot"
	"autotrader/internal/config"
	"autotrader/internal/decision"
	"autotrader/internal/exchange"
	"autotrader/internal/news"
	"autotrader/internal/websocket"
	"autotrader/pkg/utils"
)

// startCommand запускает торговую сессию и HTTP сервер dashboard.
// Работает до SIGINT/SIGTERM или команды stop, затем закрывает
// позицию (штатно либо аварийно) и завершает сессию.
func startCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	paper := fs.Bool("paper", false, "paper trading без обращений к бирже")
	paperBalance := fs.Float64("paper-balance", 1000, "стартовый баланс paper trading, USDT")
	fs.Parse(args)

	if *paper {
		cfg.Exchange.Paper = true
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log := logger.Sugar()
	defer logger.Sync()

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var ex exchange.Exchange
	if cfg.Exchange.Paper {
		ex = exchange.NewPaper(*paperBalance)
		log.Infow("paper trading enabled", "balance", *paperBalance)
	} else {
		ex = exchange.NewBybit(exchange.BybitConfig{
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
			Demo:      cfg.Exchange.Demo,
			BaseURL:   cfg.Exchange.BaseURL,
		})
	}

	var provider decision.Provider
	switch cfg.Decision.Provider {
	case "claude":
		provider = decision.NewClaude(cfg.Decision.AnthropicAPIKey, cfg.Decision.Model, cfg.Decision.Timeout)
	default:
		provider = decision.NewRules()
	}

	newsSvc := news.NewService(cfg.Trading.News, log)

	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	engine := bot.NewEngine(cfg, store, ex, provider, newsSvc, log)
	engine.SetNotifier(hub)

	// Команда stop приходит через API: handler только сигналит,
	// фактическую остановку выполняет главная горутина
	stopCh := make(chan bool, 1)
	router := api.SetupRoutes(&api.Dependencies{
		Engine:   engine,
		Store:    store,
		News:     newsSvc,
		Hub:      hub,
		Security: cfg.Security,
		Log:      log,
		Stop: func(emergency bool) {
			select {
			case stopCh <- emergency:
			default:
			}
		},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("http server failed", "error", err)
		}
	}()

	if err := engine.Start(context.Background()); err != nil {
		return fmt.Errorf("start trading session: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var emergency bool
	select {
	case <-quit:
		log.Infow("shutdown signal received")
	case emergency = <-stopCh:
		log.Infow("stop requested via api", "emergency", emergency)
	}

	if err := engine.Stop(emergency); err != nil {
		log.Errorw("session stop failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorw("http server shutdown failed", "error", err)
	}

	log.Infow("autotrader exited")
	return nil
}

// stopCommand останавливает идущую сессию через API запущенного
// процесса. С -emergency позиция закрывается немедленно.
func stopCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	emergency := fs.Bool("emergency", false, "аварийно закрыть позицию немедленно")
	fs.Parse(args)

	body, err := json.Marshal(map[string]bool{"emergency": *emergency})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s:%d/api/v1/stop", cfg.Server.Host, cfg.Server.Port)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Security.DashboardUser != "" {
		req.SetBasicAuth(cfg.Security.DashboardUser, cfg.Security.DashboardPassword)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("stop request failed (is the session running?): %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		if *emergency {
			fmt.Println("emergency stop accepted, closing position")
		} else {
			fmt.Println("stop accepted, session is shutting down")
		}
		return nil
	case http.StatusConflict:
		return fmt.Errorf("no active trading session")
	default:
		return fmt.Errorf("stop request rejected: %s", resp.Status)
	}
}
