package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const statisticsFixture = `<html><body>
<fin-streamer data-field="regularMarketPrice" data-value="121.50">121.50</fin-streamer>
<table>
  <tr><td>Market Cap</td><td>1.50T</td></tr>
  <tr><td>Trailing P/E</td><td>25.50</td></tr>
</table>
<table>
  <tr><td>52 Week High</td><td>130.00</td></tr>
  <tr><td>52 Week Low</td><td>90.00</td></tr>
  <tr><td>Beta (5Y Monthly)</td><td>1.20</td></tr>
</table>
</body></html>`

func TestScrapeFetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, statisticsFixture)
	}))
	defer srv.Close()

	s := NewScrape(WithScrapeBaseURL(srv.URL))
	snap, err := s.FetchSnapshot(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !snap.DataAvailable {
		t.Fatal("expected data_available=true")
	}
	if got, _ := snap.CurrentPrice.Float(); got != 121.50 {
		t.Errorf("price: got %v, want 121.5", got)
	}
	if got, _ := snap.PERatio.Float(); got != 25.50 {
		t.Errorf("pe: got %v, want 25.5", got)
	}
	if got, _ := snap.MarketCap.Float(); got != 1.5e12 {
		t.Errorf("market cap: got %v, want 1.5e12", got)
	}
	if got, _ := snap.Range52WLow.Float(); got != 90.0 {
		t.Errorf("52w low: got %v, want 90", got)
	}
	if got, _ := snap.Range52WHigh.Float(); got != 130.0 {
		t.Errorf("52w high: got %v, want 130", got)
	}
	// Position derives from the scraped range: (121.5-90)/(130-90).
	if got, _ := snap.Range52WPosition.Float(); got != 0.7875 {
		t.Errorf("position: got %v, want 0.7875", got)
	}

	// Growth and history metrics are out of scrape's reach.
	if snap.RevenueGrowthYoYPct.Valid() || snap.VolatilityProxy.Valid() {
		t.Error("expected N/A for growth and volatility")
	}
}

func TestScrapeHandlesMissingValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table>
<tr><td>Trailing P/E</td><td>N/A</td></tr>
<tr><td>Market Cap</td><td>--</td></tr>
</table></body></html>`)
	}))
	defer srv.Close()

	s := NewScrape(WithScrapeBaseURL(srv.URL))
	snap, err := s.FetchSnapshot(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.DataAvailable {
		t.Fatal("expected data_available=false for a page of N/A values")
	}
	if snap.PERatio.Valid() || snap.MarketCap.Valid() {
		t.Fatal("expected N/A metrics")
	}
}

func TestScrapeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewScrape(WithScrapeBaseURL(srv.URL))
	if _, err := s.FetchSnapshot(context.Background(), "ACME"); err == nil {
		t.Fatal("expected error for HTTP failure")
	}
}

func TestScrapeName(t *testing.T) {
	if got := NewScrape().Name(); got != "Yahoo Scrape" {
		t.Fatalf("got %q, want Yahoo Scrape", got)
	}
}
