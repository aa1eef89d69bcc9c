package profile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type stubValidator struct {
	ok     bool
	reason string
	seen   []string
}

func (v *stubValidator) Validate(_ context.Context, ticker string) (bool, string) {
	v.seen = append(v.seen, ticker)
	return v.ok, v.reason
}

// ════════════════════════════════════════════════════════════════════════════
// CRUD
// ════════════════════════════════════════════════════════════════════════════

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Create("tech watchlist")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if len(p.Tickers) != 0 {
		t.Fatalf("expected empty tickers, got %v", p.Tickers)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "tech watchlist" {
		t.Fatalf("got name %q, want %q", got.Name, "tech watchlist")
	}
}

func TestCreateEmptyName(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("  "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("got %v, want ErrEmptyName", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestListSortedByName(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Create(name); err != nil {
			t.Fatalf("Create %s failed: %v", name, err)
		}
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(all) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(all), len(want))
	}
	for i, p := range all {
		if p.Name != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, p.Name, want[i])
		}
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Create("short lived")

	if err := s.Delete(p.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v after delete, want ErrNotFound", err)
	}
	if err := s.Delete(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: got %v, want ErrNotFound", err)
	}
}

// ════════════════════════════════════════════════════════════════════════════
// Tickers
// ════════════════════════════════════════════════════════════════════════════

func TestAddTickersNormalizesAndDedupes(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Create("w")

	p, err := s.AddTickers(p.ID, "aapl", " msft ", "AAPL", "")
	if err != nil {
		t.Fatalf("AddTickers failed: %v", err)
	}
	want := []string{"AAPL", "MSFT"}
	if len(p.Tickers) != len(want) {
		t.Fatalf("got %v, want %v", p.Tickers, want)
	}
	for i, sym := range want {
		if p.Tickers[i] != sym {
			t.Fatalf("got %v, want %v", p.Tickers, want)
		}
	}
}

func TestRemoveTicker(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Create("w")
	p, _ = s.AddTickers(p.ID, "AAPL", "MSFT")

	p, err := s.RemoveTicker(p.ID, "aapl")
	if err != nil {
		t.Fatalf("RemoveTicker failed: %v", err)
	}
	if len(p.Tickers) != 1 || p.Tickers[0] != "MSFT" {
		t.Fatalf("got %v, want [MSFT]", p.Tickers)
	}

	// Removing an absent symbol is a no-op.
	p, err = s.RemoveTicker(p.ID, "TSLA")
	if err != nil {
		t.Fatalf("RemoveTicker absent failed: %v", err)
	}
	if len(p.Tickers) != 1 {
		t.Fatalf("got %v, want [MSFT]", p.Tickers)
	}
}

func TestAddValidatedAccepts(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Create("w")
	v := &stubValidator{ok: true}

	p, err := s.AddValidated(context.Background(), p.ID, "nvda", v)
	if err != nil {
		t.Fatalf("AddValidated failed: %v", err)
	}
	if len(p.Tickers) != 1 || p.Tickers[0] != "NVDA" {
		t.Fatalf("got %v, want [NVDA]", p.Tickers)
	}
	if len(v.seen) != 1 || v.seen[0] != "NVDA" {
		t.Fatalf("validator saw %v, want [NVDA]", v.seen)
	}
}

func TestAddValidatedRejects(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Create("w")
	v := &stubValidator{ok: false, reason: "no provider returned data"}

	_, err := s.AddValidated(context.Background(), p.ID, "ZZZZZZ", v)
	if !errors.Is(err, ErrInvalidTicker) {
		t.Fatalf("got %v, want ErrInvalidTicker", err)
	}

	got, _ := s.Get(p.ID)
	if len(got.Tickers) != 0 {
		t.Fatalf("rejected ticker was persisted: %v", got.Tickers)
	}
}

func TestAddValidatedEmptySymbol(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Create("w")
	v := &stubValidator{ok: true}

	if _, err := s.AddValidated(context.Background(), p.ID, "  ", v); !errors.Is(err, ErrInvalidTicker) {
		t.Fatalf("got %v, want ErrInvalidTicker", err)
	}
	if len(v.seen) != 0 {
		t.Fatalf("validator called for empty symbol: %v", v.seen)
	}
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Create("old")

	p, err := s.Rename(p.ID, "new")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if p.Name != "new" {
		t.Fatalf("got %q, want %q", p.Name, "new")
	}
	if _, err := s.Rename(p.ID, ""); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("got %v, want ErrEmptyName", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	p, _ := s.Create("durable")
	s.AddTickers(p.ID, "AAPL")
	s.Close()

	s2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(p.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Name != "durable" || len(got.Tickers) != 1 || got.Tickers[0] != "AAPL" {
		t.Fatalf("got %+v, want durable/[AAPL]", got)
	}
}
