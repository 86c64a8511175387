package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"pindi/internal/auth"
	"pindi/internal/core"
)

const themeKey = "theme"

type loginRequest struct {
	PIN string `json:"pin"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.gate.Grant(strings.TrimSpace(req.PIN))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPIN) {
			slog.WarnContext(r.Context(), "Login rejected")
			writeError(w, http.StatusUnauthorized, "invalid pin")
			return
		}
		slog.ErrorContext(r.Context(), "Login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		s.gate.Revoke(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListEntries returns the cached collection newest-first. An optional
// date parameter narrows it to a single calendar day.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.entries.Entries(r.Context())

	if date := strings.TrimSpace(r.URL.Query().Get("date")); date != "" {
		if _, err := core.ParseDate(date); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date")
			return
		}
		entries = core.FilterByDate(entries, date)
	}

	if entries == nil {
		entries = []core.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type createEntryRequest struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
	Type   string  `json:"type"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.entries.Create(r.Context(), req.Amount, sanitizeInput(req.Note), core.EntryType(req.Type))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidAmount):
			writeError(w, http.StatusUnprocessableEntity, "amount must be positive")
		case errors.Is(err, core.ErrInvalidType):
			writeError(w, http.StatusUnprocessableEntity, "type must be income or expense")
		default:
			slog.ErrorContext(r.Context(), "Entry creation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not save entry")
		}
		return
	}

	s.chartCache.Flush()
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "missing entry id")
		return
	}

	if err := s.entries.Delete(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Entry deletion failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete entry")
		return
	}

	s.chartCache.Flush()
	w.WriteHeader(http.StatusNoContent)
}

// handleTotals reports income, expense, and balance for the bucket containing
// the reference date at the requested granularity.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	period, ok := queryPeriod(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid period")
		return
	}
	ref, ok := refDate(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid date")
		return
	}

	entries := s.entries.Entries(r.Context())
	writeJSON(w, http.StatusOK, core.PeriodTotals(period, entries, ref))
}

// handleChart returns the bucketed series for the requested period. Series
// for a given period and reference date are cached until the next write.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	period, ok := queryPeriod(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid period")
		return
	}
	ref, ok := refDate(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid date")
		return
	}

	// The worker process replaces the store behind this server's back;
	// a moved revision means every cached series is stale.
	if rev := s.store.Revision(r.Context()); rev != s.lastRevision.Swap(rev) {
		s.chartCache.Flush()
	}

	key := string(period) + "-" + core.FormatDate(ref)
	if points, found := s.chartCache.Get(key); found {
		slog.DebugContext(r.Context(), "Chart cache hit", "period", period, "ref", core.FormatDate(ref))
		writeJSON(w, http.StatusOK, points)
		return
	}

	entries := s.entries.Entries(r.Context())
	points := core.PeriodSeries(period, entries, ref)
	s.chartCache.Set(key, points)

	writeJSON(w, http.StatusOK, points)
}

// handleRefresh pulls the full remote snapshot into the local cache. When the
// remote is unavailable the cache is left untouched and refreshed=false is
// reported, never an error.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshed := s.entries.Refresh(r.Context())
	if refreshed {
		s.chartCache.Flush()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed": refreshed,
		"count":     len(s.entries.Entries(r.Context())),
	})
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme := s.store.GetSetting(r.Context(), themeKey, "dark")
	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	theme := strings.TrimSpace(req.Theme)
	if theme != "light" && theme != "dark" {
		writeError(w, http.StatusUnprocessableEntity, "theme must be light or dark")
		return
	}

	if err := s.store.SetSetting(r.Context(), themeKey, theme); err != nil {
		slog.ErrorContext(r.Context(), "Failed to persist theme", "error", err)
		writeError(w, http.StatusInternalServerError, "could not save theme")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

// queryPeriod resolves the optional period parameter, defaulting to total.
func queryPeriod(r *http.Request) (core.Period, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("period"))
	if v == "" {
		return core.Total, true
	}
	p := core.Period(v)
	return p, p.Valid()
}
