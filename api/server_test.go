package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rdx-labs/rationale/internal/config"
	"github.com/rdx-labs/rationale/internal/datasource"
	"github.com/rdx-labs/rationale/internal/llm"
	"github.com/rdx-labs/rationale/internal/narrative"
	"github.com/rdx-labs/rationale/internal/profile"
	"github.com/rdx-labs/rationale/internal/quant"
	"github.com/rdx-labs/rationale/internal/relay"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// fixedMetrics returns a canned snapshot for every ticker.
type fixedMetrics struct {
	snap quant.Snapshot
}

func (f *fixedMetrics) Name() string { return "fixed" }
func (f *fixedMetrics) FetchSnapshot(_ context.Context, ticker string) (quant.Snapshot, error) {
	if quant.NormalizeTicker(ticker) == "" {
		return quant.Snapshot{}, datasource.ErrEmptyTicker
	}
	snap := f.snap
	snap.Ticker = quant.NormalizeTicker(ticker)
	return snap, nil
}

// cannedChat returns fixed debate text.
type cannedChat struct {
	content string
}

func (c *cannedChat) Chat(context.Context, []llm.Message, *llm.ChatOptions) (*llm.Response, error) {
	return &llm.Response{Content: c.content}, nil
}

// stubValidator accepts or rejects every symbol.
type stubValidator struct {
	ok     bool
	reason string
}

func (v *stubValidator) Validate(context.Context, string) (bool, string) {
	return v.ok, v.reason
}

func buySnapshot() quant.Snapshot {
	snap := quant.NewSnapshot("ACME")
	snap.CurrentPrice = quant.Value(100)
	snap.RevenueGrowthYoYPct = quant.Value(40)
	snap.EPSGrowthPct = quant.Value(30)
	snap.Return30DPct = quant.Value(5)
	snap.Range52WPosition = quant.Value(0.5)
	snap.PERatio = quant.Value(20)
	snap.VolatilityProxy = quant.Value(0.3)
	snap.MarketCap = quant.Value(1e12)
	snap.UpdateAvailability()
	return snap
}

func testServer(t *testing.T, validator profile.Validator) *Server {
	t.Helper()

	store, err := profile.Open(filepath.Join(t.TempDir(), "profiles.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("opening profile store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	chat := &cannedChat{content: "---RISKS---\nrisk text\n---BULL---\nbull text"}
	gen := narrative.NewGenerator(chat, narrative.ModeCombined, zerolog.Nop())
	rly := relay.New(&fixedMetrics{snap: buySnapshot()}, gen, zerolog.Nop())

	cfg := &config.Config{}
	cfg.API.CORSOrigins = []string{"http://localhost:3000"}

	return NewServer(cfg, rly, store, validator, zerolog.Nop())
}

func doRequest(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func createProfile(t *testing.T, srv *Server, name string) string {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/profiles", `{"name":"`+name+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create profile: status %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	return data["id"].(string)
}

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	rec := doRequest(t, srv, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatal("expected success")
	}
	data := resp.Data.(map[string]interface{})
	if data["status"] != "ok" {
		t.Fatalf("status field: %v", data["status"])
	}
}

// ════════════════════════════════════════════════════════════════════
// Analyze
// ════════════════════════════════════════════════════════════════════

func TestAnalyze(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	rec := doRequest(t, srv, http.MethodGet, "/api/analyze?ticker=acme&thesis=AI+growth", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	data := resp.Data.(map[string]interface{})
	if data["ticker"] != "ACME" {
		t.Fatalf("ticker: %v", data["ticker"])
	}
	if data["bear_output"] != "risk text" {
		t.Fatalf("bear_output: %v", data["bear_output"])
	}
	verdict := data["verdict"].(map[string]interface{})
	if verdict["verdict"] != "BUY" {
		t.Fatalf("verdict: %v", verdict)
	}
}

func TestAnalyzeMissingTicker(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})

	for _, path := range []string{"/api/analyze", "/api/analyze?ticker=++"} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status got %d, want 400", path, rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Error == "" {
			t.Fatalf("%s: expected error response, got %+v", path, resp)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Profiles
// ════════════════════════════════════════════════════════════════════

func TestProfileCRUD(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})

	id := createProfile(t, srv, "tech")

	// Get
	rec := doRequest(t, srv, http.MethodGet, "/api/profiles/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Data.(map[string]interface{})["name"] != "tech" {
		t.Fatalf("get: %+v", resp.Data)
	}

	// List
	rec = doRequest(t, srv, http.MethodGet, "/api/profiles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	resp = decodeResponse(t, rec)
	if list := resp.Data.([]interface{}); len(list) != 1 {
		t.Fatalf("list: got %d profiles, want 1", len(list))
	}

	// Delete
	rec = doRequest(t, srv, http.MethodDelete, "/api/profiles/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/profiles/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestCreateProfileEmptyName(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	rec := doRequest(t, srv, http.MethodPost, "/api/profiles", `{"name":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	rec := doRequest(t, srv, http.MethodGet, "/api/profiles/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Tickers
// ════════════════════════════════════════════════════════════════════

func TestUpdateTickersAddAndRemove(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	id := createProfile(t, srv, "w")

	rec := doRequest(t, srv, http.MethodPost, "/api/profiles/"+id+"/tickers",
		`{"add":["aapl","msft"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: status %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	tickers := resp.Data.(map[string]interface{})["tickers"].([]interface{})
	if len(tickers) != 2 || tickers[0] != "AAPL" || tickers[1] != "MSFT" {
		t.Fatalf("tickers after add: %v", tickers)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/profiles/"+id+"/tickers",
		`{"remove":["AAPL"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: status %d", rec.Code)
	}
	resp = decodeResponse(t, rec)
	tickers = resp.Data.(map[string]interface{})["tickers"].([]interface{})
	if len(tickers) != 1 || tickers[0] != "MSFT" {
		t.Fatalf("tickers after remove: %v", tickers)
	}
}

func TestUpdateTickersInvalidSymbol(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: false, reason: "no provider returned data"})
	id := createProfile(t, srv, "w")

	rec := doRequest(t, srv, http.MethodPost, "/api/profiles/"+id+"/tickers",
		`{"add":["ZZZZZZ"]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422", rec.Code)
	}

	// Nothing persisted.
	rec = doRequest(t, srv, http.MethodGet, "/api/profiles/"+id, "")
	resp := decodeResponse(t, rec)
	if tickers := resp.Data.(map[string]interface{})["tickers"].([]interface{}); len(tickers) != 0 {
		t.Fatalf("tickers: %v, want empty", tickers)
	}
}

func TestUpdateTickersEmptyBody(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	id := createProfile(t, srv, "w")

	rec := doRequest(t, srv, http.MethodPost, "/api/profiles/"+id+"/tickers", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Scan
// ════════════════════════════════════════════════════════════════════

func TestScanProfile(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	id := createProfile(t, srv, "w")
	doRequest(t, srv, http.MethodPost, "/api/profiles/"+id+"/tickers",
		`{"add":["AAA","BBB"]}`)

	rec := doRequest(t, srv, http.MethodGet, "/api/profiles/"+id+"/scan", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})

	items := data["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("items: got %d, want 2", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["ticker"] != "AAA" {
		t.Fatalf("first item: %v", first)
	}

	// Every canned snapshot scores BUY, so both tickers show up.
	buys := data["buys"].([]interface{})
	if len(buys) != 2 || buys[0] != "AAA" || buys[1] != "BBB" {
		t.Fatalf("buys: %v", buys)
	}
}

func TestScanProfileNotFound(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	rec := doRequest(t, srv, http.MethodGet, "/api/profiles/missing/scan", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Config keys
// ════════════════════════════════════════════════════════════════════

func TestGetConfigKeys(t *testing.T) {
	srv := testServer(t, &stubValidator{ok: true})
	srv.cfg.LLM.GroqKey = "gsk-test-very-long-key-value"

	rec := doRequest(t, srv, http.MethodGet, "/api/config/keys", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	keys := resp.Data.([]interface{})
	if len(keys) != 2 {
		t.Fatalf("got %d key statuses, want 2", len(keys))
	}
	groq := keys[0].(map[string]interface{})
	if groq["name"] != "Groq API Key" || groq["is_set"] != true {
		t.Fatalf("groq status: %v", groq)
	}
	if masked := groq["masked"].(string); strings.Contains(masked, "very-long") {
		t.Fatalf("key not masked: %q", masked)
	}
}
