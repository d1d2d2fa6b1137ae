package news

import (
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"autotrader/internal/config"
)

// Headline - один заголовок новости
type Headline struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Scraper собирает заголовки с настроенных источников
type Scraper struct {
	sources []config.NewsSource
	timeout time.Duration
}

// NewScraper создает скрейпер. При пустом списке источников
// используются источники по умолчанию.
func NewScraper(sources []config.NewsSource, timeout time.Duration) *Scraper {
	if len(sources) == 0 {
		sources = defaultSources()
	}
	return &Scraper{sources: sources, timeout: timeout}
}

// defaultSources возвращает источники крипто-новостей по умолчанию
func defaultSources() []config.NewsSource {
	return []config.NewsSource{
		{
			Name:             "coindesk",
			URL:              "https://www.coindesk.com/markets",
			HeadlineSelector: "h2, h3.card-title",
		},
		{
			Name:             "cointelegraph",
			URL:              "https://cointelegraph.com/tags/markets",
			HeadlineSelector: "span.post-card-inline__title",
		},
	}
}

// Fetch собирает заголовки со всех источников.
// Недоступный источник пропускается, ошибка возвращается только
// если не удалось собрать ни одного заголовка.
func (s *Scraper) Fetch() ([]Headline, error) {
	var headlines []Headline
	var lastErr error

	for _, source := range s.sources {
		fetched, err := s.fetchSource(source)
		if err != nil {
			lastErr = err
			continue
		}
		headlines = append(headlines, fetched...)
	}

	if len(headlines) == 0 && lastErr != nil {
		return nil, lastErr
	}

	return headlines, nil
}

// fetchSource собирает заголовки одного источника
func (s *Scraper) fetchSource(source config.NewsSource) ([]Headline, error) {
	domain, err := hostOf(source.URL)
	if err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.AllowedDomains(domain),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	now := time.Now()
	var headlines []Headline
	c.OnHTML(source.HeadlineSelector, func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.Text)
		if title == "" || len(title) < 15 {
			return
		}
		headlines = append(headlines, Headline{
			Source:    source.Name,
			Title:     title,
			URL:       e.Request.AbsoluteURL(e.Attr("href")),
			FetchedAt: now,
		})
	})

	if err := c.Visit(source.URL); err != nil {
		return nil, err
	}
	c.Wait()

	return headlines, nil
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return parsed.Host, nil
}
