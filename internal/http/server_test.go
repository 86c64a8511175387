package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"pindi/internal/auth"
	"pindi/internal/core"
	"pindi/internal/services"
	"pindi/internal/storage"
)

type fakeLedger struct {
	entries   []core.Entry
	available bool
	ackWrites bool
}

func (f *fakeLedger) FetchAll(_ context.Context, _ string) ([]core.Entry, bool) {
	if !f.available {
		return nil, false
	}
	return f.entries, true
}

func (f *fakeLedger) Append(_ context.Context, _ core.Entry, _ string) bool { return f.ackWrites }
func (f *fakeLedger) RemoveByID(_ context.Context, _ string, _ string) bool { return f.ackWrites }

func newTestServer(t *testing.T, ledger *fakeLedger) *Server {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "pindi.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	svc := services.NewEntryService(store, ledger, nil, "9494")
	gate := auth.NewGate("9494", auth.DefaultTTL)
	srv := NewServer(":0", svc, gate, store)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		store.Close()
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, srv *Server) string {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/api/login", "", `{"pin":"9494"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	var session auth.Session
	if err := json.Unmarshal(rr.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token == "" || !session.Authenticated {
		t.Fatalf("bad session: %+v", session)
	}
	return session.Token
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestLoginRejectsWrongPIN(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{})
	rr := doJSON(t, srv, http.MethodPost, "/api/login", "", `{"pin":"0000"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong pin status=%d", rr.Code)
	}
}

func TestEntriesRequireSession(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{})
	rr := doJSON(t, srv, http.MethodGet, "/api/entries", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/entries", "bogus-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token status=%d", rr.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{})
	token := login(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/api/logout", token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/entries", token, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token still accepted, status=%d", rr.Code)
	}
}

func TestEntryLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{ackWrites: true})
	token := login(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/api/entries", token, `{"amount":100,"note":"salary","type":"income"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if created.ID == "" || created.Amount != 100 || created.Type != core.Income {
		t.Fatalf("bad created entry: %+v", created)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var listed []core.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("list = %+v", listed)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/entries/"+created.ID, token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries", token, "")
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("entry survived delete: %+v", listed)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{ackWrites: true})
	token := login(t, srv)

	cases := []struct {
		name string
		body string
	}{
		{"zero amount", `{"amount":0,"note":"x","type":"income"}`},
		{"negative amount", `{"amount":-5,"note":"x","type":"expense"}`},
		{"bad type", `{"amount":5,"note":"x","type":"transfer"}`},
	}
	for _, tc := range cases {
		rr := doJSON(t, srv, http.MethodPost, "/api/entries", token, tc.body)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status=%d, want 422", tc.name, rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/entries", token, `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d, want 400", rr.Code)
	}
}

func TestTotalsAndChart(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{ackWrites: true})
	token := login(t, srv)

	for _, body := range []string{
		`{"amount":100,"note":"salary","type":"income"}`,
		`{"amount":40,"note":"groceries","type":"expense"}`,
	} {
		if rr := doJSON(t, srv, http.MethodPost, "/api/entries", token, body); rr.Code != http.StatusCreated {
			t.Fatalf("seed entry status=%d", rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/totals?period=total", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("totals status=%d", rr.Code)
	}
	var totals core.Totals
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals.Income != 100 || totals.Expense != 40 || totals.Balance != 60 {
		t.Fatalf("totals = %+v", totals)
	}

	wantBuckets := map[string]int{
		"daily":   7,
		"weekly":  4,
		"monthly": 6,
		"yearly":  3,
		"total":   1,
	}
	for period, want := range wantBuckets {
		rr := doJSON(t, srv, http.MethodGet, "/api/chart?period="+period, token, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("chart %s status=%d", period, rr.Code)
		}
		var points []core.ChartPoint
		if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil {
			t.Fatalf("decode chart %s: %v", period, err)
		}
		if len(points) != want {
			t.Fatalf("chart %s buckets=%d, want %d", period, len(points), want)
		}
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/chart?period=hourly", token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad period status=%d, want 422", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/totals?date=13-01-2024", token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad date status=%d, want 422", rr.Code)
	}
}

func TestChartCacheInvalidatedOnWrite(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{ackWrites: true})
	token := login(t, srv)

	// Prime the cache with an empty series.
	rr := doJSON(t, srv, http.MethodGet, "/api/chart?period=total", token, "")
	var points []core.ChartPoint
	if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	if points[0].Income != 0 {
		t.Fatalf("expected empty series, got %+v", points)
	}

	if rr := doJSON(t, srv, http.MethodPost, "/api/entries", token, `{"amount":10,"note":"n","type":"income"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/chart?period=total", token, "")
	if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	if points[0].Income != 10 {
		t.Fatalf("stale chart after write: %+v", points)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	ledger := &fakeLedger{
		available: true,
		entries: []core.Entry{
			{ID: "r1", Amount: 5, Note: "n", Type: core.Income, Date: "2024-01-01", CreatedAt: 1},
		},
	}
	srv := newTestServer(t, ledger)
	token := login(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/api/refresh", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status=%d", rr.Code)
	}
	var resp struct {
		Refreshed bool `json:"refreshed"`
		Count     int  `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if !resp.Refreshed || resp.Count != 1 {
		t.Fatalf("refresh = %+v", resp)
	}
}

func TestRefreshUnavailableRemote(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{available: false, ackWrites: true})
	token := login(t, srv)

	if rr := doJSON(t, srv, http.MethodPost, "/api/entries", token, `{"amount":10,"note":"kept","type":"income"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/refresh", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status=%d", rr.Code)
	}
	var resp struct {
		Refreshed bool `json:"refreshed"`
		Count     int  `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if resp.Refreshed {
		t.Fatal("refresh should report false when remote is unavailable")
	}
	if resp.Count != 1 {
		t.Fatalf("local cache lost on failed refresh: count=%d", resp.Count)
	}
}

func TestChartFlushedAfterExternalReplace(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "pindi.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	svc := services.NewEntryService(store, &fakeLedger{}, nil, "9494")
	gate := auth.NewGate("9494", auth.DefaultTTL)
	srv := NewServer(":0", svc, gate, store)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		store.Close()
	})
	token := login(t, srv)

	// Prime the chart cache with an empty series.
	rr := doJSON(t, srv, http.MethodGet, "/api/chart?period=total", token, "")
	var points []core.ChartPoint
	if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	if points[0].Income != 0 {
		t.Fatalf("expected empty series, got %+v", points)
	}

	// The sync worker refreshes the shared store from its own process; the
	// server only sees the database change, not a flush call.
	snapshot := []core.Entry{
		{ID: "r1", Amount: 25, Note: "n", Type: core.Income, Date: "2024-01-01", CreatedAt: 1},
	}
	if err := store.ReplaceAll(context.Background(), snapshot); err != nil {
		t.Fatalf("replace: %v", err)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/chart?period=total", token, "")
	if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	if points[0].Income != 25 {
		t.Fatalf("stale chart after external refresh: %+v", points)
	}
}

func TestThemePersistence(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{})
	token := login(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/theme", token, "")
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode theme: %v", err)
	}
	if resp["theme"] != "dark" {
		t.Fatalf("default theme = %q, want dark", resp["theme"])
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/theme", token, `{"theme":"light"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("set theme status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/theme", token, "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode theme: %v", err)
	}
	if resp["theme"] != "light" {
		t.Fatalf("theme = %q, want light", resp["theme"])
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/theme", token, `{"theme":"neon"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid theme status=%d, want 422", rr.Code)
	}
}
