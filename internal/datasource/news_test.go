package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Yahoo! Finance: ACME News</title>
  <item>
    <title>Acme beats earnings estimates</title>
    <link>https://example.com/a</link>
    <description>&lt;p&gt;Quarterly results &lt;b&gt;above&lt;/b&gt; expectations.&lt;/p&gt;</description>
    <pubDate>Mon, 18 Aug 2025 12:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Acme announces buyback</title>
    <link>https://example.com/b</link>
    <pubDate>Tue, 19 Aug 2025 09:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Analysts split on Acme outlook</title>
    <link>https://example.com/c</link>
    <pubDate>Sun, 17 Aug 2025 15:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

func TestNewsHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("s"); got != "ACME" {
			t.Errorf("ticker param: got %q, want ACME", got)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFixture)
	}))
	defer srv.Close()

	n := NewNews(WithNewsFeedURL(srv.URL + "/rss?s=%s"))
	headlines, err := n.Headlines(context.Background(), "acme", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(headlines) != 2 {
		t.Fatalf("got %d headlines, want 2", len(headlines))
	}
	// Newest first.
	if headlines[0].Title != "Acme announces buyback" {
		t.Errorf("first headline: got %q", headlines[0].Title)
	}
	if headlines[1].Title != "Acme beats earnings estimates" {
		t.Errorf("second headline: got %q", headlines[1].Title)
	}
	if headlines[1].Summary != "Quarterly results above expectations." {
		t.Errorf("summary not stripped of HTML: %q", headlines[1].Summary)
	}
}

func TestNewsHeadlinesCached(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, rssFixture)
	}))
	defer srv.Close()

	n := NewNews(WithNewsFeedURL(srv.URL + "/rss?s=%s"))
	ctx := context.Background()
	if _, err := n.Headlines(ctx, "ACME", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := n.Headlines(ctx, "ACME", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("feed fetched %d times, want 1", hits)
	}
}

func TestNewsEmptyTicker(t *testing.T) {
	n := NewNews()
	if _, err := n.Headlines(context.Background(), " ", 5); err != ErrEmptyTicker {
		t.Fatalf("got %v, want ErrEmptyTicker", err)
	}
}

func TestNewsFeedDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewNews(WithNewsFeedURL(srv.URL + "/rss?s=%s"))
	if _, err := n.Headlines(context.Background(), "ACME", 5); err == nil {
		t.Fatal("expected error for dead feed")
	}
}

func TestCleanHTML(t *testing.T) {
	got := cleanHTML("<p>Hello <b>world</b></p>")
	if got != "Hello world" {
		t.Fatalf("got %q, want %q", got, "Hello world")
	}
	if cleanHTML("") != "" {
		t.Fatal("empty input should stay empty")
	}
}
