package datasource

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rdx-labs/rationale/internal/quant"
)

// scrapeBaseURL is the default host for the Yahoo key-statistics page.
const scrapeBaseURL = "https://finance.yahoo.com"

// Scrape is the last-resort metrics provider. It parses the Yahoo
// Finance key-statistics page with goquery, so it only yields the
// fields that appear in the statistics tables: price, P/E ratio,
// market cap and the 52-week range. Everything else stays N/A.
type Scrape struct {
	baseURL string
	limiter *RateLimiter
}

// ScrapeOption customizes a Scrape provider.
type ScrapeOption func(*Scrape)

// WithScrapeBaseURL overrides the page host, mainly for tests.
func WithScrapeBaseURL(url string) ScrapeOption {
	return func(s *Scrape) { s.baseURL = url }
}

// NewScrape creates the HTML scrape fallback provider.
func NewScrape(opts ...ScrapeOption) *Scrape {
	s := &Scrape{
		baseURL: scrapeBaseURL,
		limiter: NewRateLimiter(1, 2*time.Second), // scraping is polite
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider name.
func (s *Scrape) Name() string { return "Yahoo Scrape" }

// FetchSnapshot scrapes the key-statistics page for the ticker.
func (s *Scrape) FetchSnapshot(ctx context.Context, ticker string) (quant.Snapshot, error) {
	ticker = quant.NormalizeTicker(ticker)
	if ticker == "" {
		return quant.Snapshot{}, ErrEmptyTicker
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return quant.Snapshot{}, err
	}

	url := fmt.Sprintf("%s/quote/%s/key-statistics", s.baseURL, ticker)
	body, err := doGet(ctx, url, map[string]string{"Accept": "text/html"})
	if err != nil {
		return quant.Snapshot{}, fmt.Errorf("scrape %s: %w", ticker, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return quant.Snapshot{}, fmt.Errorf("parse statistics page: %w", err)
	}

	snap := quant.NewSnapshot(ticker)
	s.extractStatistics(doc, &snap)
	s.extractPrice(doc, &snap)

	price, okP := snap.CurrentPrice.Float()
	lo, okL := snap.Range52WLow.Float()
	hi, okH := snap.Range52WHigh.Float()
	if okP && okL && okH {
		snap.Range52WPosition = RangePosition(price, lo, hi)
	}

	snap.UpdateAvailability()
	return snap, nil
}

// extractStatistics walks the statistics tables matching row labels.
// Yahoo shuffles its table markup regularly, so labels are matched
// case-insensitively by substring.
func (s *Scrape) extractStatistics(doc *goquery.Document, snap *quant.Snapshot) {
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			label := strings.ToLower(strings.TrimSpace(row.Find("td").First().Text()))
			value := strings.TrimSpace(row.Find("td").Last().Text())

			switch {
			case strings.Contains(label, "trailing p/e"):
				setIfMissing(&snap.PERatio, value)
			case strings.Contains(label, "market cap"):
				setIfMissing(&snap.MarketCap, value)
			case strings.Contains(label, "52 week high"):
				setIfMissing(&snap.Range52WHigh, value)
			case strings.Contains(label, "52 week low"):
				setIfMissing(&snap.Range52WLow, value)
			}
		})
	})
}

// extractPrice pulls the live price from the fin-streamer element on the
// quote header.
func (s *Scrape) extractPrice(doc *goquery.Document, snap *quant.Snapshot) {
	if snap.CurrentPrice.Valid() {
		return
	}
	doc.Find(`fin-streamer[data-field="regularMarketPrice"]`).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		raw, ok := el.Attr("data-value")
		if !ok {
			raw = el.Text()
		}
		m := parseScrapedNumber(raw)
		if m.Valid() {
			snap.CurrentPrice = m
			return false
		}
		return true
	})
}

// setIfMissing parses the display value into m unless an earlier table
// row already produced a valid reading.
func setIfMissing(m *quant.Metric, value string) {
	if m.Valid() {
		return
	}
	if parsed := parseScrapedNumber(value); parsed.Valid() {
		*m = parsed
	}
}

var scrapedNumberRe = regexp.MustCompile(`^(-?[0-9.]+)([KMBT]?)$`)

// parseScrapedNumber parses a display value like "36.54", "-5.21",
// "1,234.56", "2.5T" or "150B" into a metric. "N/A" and "--" map to
// the N/A metric. Negative values show up in trailing P/E and growth
// rows for loss-making companies.
func parseScrapedNumber(value string) quant.Metric {
	cleaned := strings.ReplaceAll(value, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, "%", "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" || cleaned == "N/A" || cleaned == "--" {
		return quant.NA()
	}

	matches := scrapedNumberRe.FindStringSubmatch(strings.ToUpper(cleaned))
	if len(matches) < 2 {
		return quant.NA()
	}
	base, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return quant.NA()
	}

	multiplier := 1.0
	switch matches[2] {
	case "K":
		multiplier = 1e3
	case "M":
		multiplier = 1e6
	case "B":
		multiplier = 1e9
	case "T":
		multiplier = 1e12
	}
	return quant.Value(base * multiplier)
}
