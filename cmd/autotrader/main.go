package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"autotrader/internal/config"
	"autotrader/internal/repository"
)

const usage = `autotrader - автоматическая торговая сессия с одной позицией

Usage:
  autotrader <command> [flags]

Commands:
  start        запустить торговую сессию (до SIGINT/SIGTERM или stop)
  stop         остановить идущую сессию (-emergency закрывает позицию немедленно)
  status       показать активную сессию и открытую сделку
  history      показать последние сделки (-limit, -session)
  performance  показать сводку результатов
  cleanup      удалить данные старше срока хранения

Flags отдельных команд: autotrader <command> -h
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var cmdErr error
	switch os.Args[1] {
	case "start", "run":
		cmdErr = startCommand(cfg, os.Args[2:])
	case "stop":
		cmdErr = stopCommand(cfg, os.Args[2:])
	case "status":
		cmdErr = statusCommand(cfg, os.Args[2:])
	case "history":
		cmdErr = historyCommand(cfg, os.Args[2:])
	case "performance":
		cmdErr = performanceCommand(cfg, os.Args[2:])
	case "cleanup":
		cmdErr = cleanupCommand(cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", cmdErr)
		os.Exit(1)
	}
}

// openStore подключается к БД и применяет миграции
func openStore(cfg *config.Config) (*repository.Store, *sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	store := repository.NewStore(db)
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}

	return store, db, nil
}
