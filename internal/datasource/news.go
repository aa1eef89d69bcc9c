package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/rdx-labs/rationale/internal/quant"
)

// yahooHeadlineFeed is the per-ticker Yahoo Finance RSS endpoint.
const yahooHeadlineFeed = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"

// Headline is one recent news item for a ticker.
type Headline struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// News fetches recent headlines for a ticker from the Yahoo Finance RSS
// feed. Headlines feed the narrative prompts only; they never touch the
// quantitative verdict.
type News struct {
	feedURL string
	cache   *Cache
	limiter *RateLimiter
	parser  *gofeed.Parser
}

// NewsOption customizes a News fetcher.
type NewsOption func(*News)

// WithNewsFeedURL overrides the feed URL template, mainly for tests. The
// template must contain one %s for the ticker.
func WithNewsFeedURL(url string) NewsOption {
	return func(n *News) { n.feedURL = url }
}

// NewNews creates a headline fetcher.
func NewNews(opts ...NewsOption) *News {
	n := &News{
		feedURL: yahooHeadlineFeed,
		cache:   NewCache(10 * time.Minute),
		limiter: NewRateLimiter(2, time.Second), // conservative: 2 req/s
		parser:  gofeed.NewParser(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Headlines returns up to limit recent headlines for the ticker, newest
// first. A failed or empty feed returns an empty slice with the error;
// callers treat headlines as best-effort garnish.
func (n *News) Headlines(ctx context.Context, ticker string, limit int) ([]Headline, error) {
	ticker = quant.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, ErrEmptyTicker
	}

	cacheKey := fmt.Sprintf("news:%s:%d", ticker, limit)
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]Headline), nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseURLWithContext(fmt.Sprintf(n.feedURL, ticker), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse headline feed %s: %w", ticker, err)
	}

	headlines := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		h := Headline{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			h.PublishedAt = *item.PublishedParsed
		}
		if h.Title != "" {
			headlines = append(headlines, h)
		}
	}

	sortHeadlinesByDate(headlines)
	if limit > 0 && len(headlines) > limit {
		headlines = headlines[:limit]
	}

	n.cache.Set(cacheKey, headlines)
	return headlines, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// sortHeadlinesByDate sorts headlines newest first.
// Simple insertion sort — fine for small slices.
func sortHeadlinesByDate(headlines []Headline) {
	for i := 1; i < len(headlines); i++ {
		key := headlines[i]
		j := i - 1
		for j >= 0 && headlines[j].PublishedAt.Before(key.PublishedAt) {
			headlines[j+1] = headlines[j]
			j--
		}
		headlines[j+1] = key
	}
}
