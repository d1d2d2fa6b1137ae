package news

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"autotrader/internal/config"
)

// Snapshot - атомарно публикуемый срез новостного фона.
// Читатели всегда видят либо nil, либо целиком консистентный срез.
type Snapshot struct {
	Score     float64   `json:"score"` // [-1, 1]
	Label     string    `json:"label"` // bullish, neutral, bearish
	Headlines int       `json:"headlines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stale сообщает, устарел ли срез относительно maxAge
func (s *Snapshot) Stale(maxAge time.Duration) bool {
	return time.Since(s.UpdatedAt) > maxAge
}

// Service - сервис новостного сентимента.
//
// Refresh вызывается из отдельного цикла оркестратора; текущий
// срез публикуется через atomic.Pointer, чтение не блокирует запись.
type Service struct {
	scraper  *Scraper
	analyzer *Analyzer
	log      *zap.SugaredLogger

	snapshot atomic.Pointer[Snapshot]
}

// NewService создает сервис сентимента
func NewService(sources []config.NewsSource, log *zap.SugaredLogger) *Service {
	return &Service{
		scraper:  NewScraper(sources, 30*time.Second),
		analyzer: NewAnalyzer(),
		log:      log,
	}
}

// Refresh собирает заголовки и публикует новый срез.
// При ошибке скрейпинга прежний срез остается доступным.
func (s *Service) Refresh() error {
	headlines, err := s.scraper.Fetch()
	if err != nil {
		return err
	}

	score := s.analyzer.Score(headlines)
	snap := &Snapshot{
		Score:     score,
		Label:     Label(score),
		Headlines: len(headlines),
		UpdatedAt: time.Now(),
	}
	s.snapshot.Store(snap)

	s.log.Debugw("news sentiment refreshed",
		"score", snap.Score,
		"label", snap.Label,
		"headlines", snap.Headlines,
	)
	return nil
}

// Snapshot возвращает последний опубликованный срез (или nil)
func (s *Service) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// publish используется в тестах для подмены среза
func (s *Service) publish(snap *Snapshot) {
	s.snapshot.Store(snap)
}
