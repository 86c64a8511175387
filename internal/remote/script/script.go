// Package script talks to the Apps-Script style ledger endpoint: a fetch-all
// GET and form-encoded action POSTs, all answering JSON. Responses from the
// sheet are loosely typed, so every field is defensively coerced on ingest.
package script

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pindi/internal/core"
	"pindi/internal/remote"
)

const (
	actionAdd    = "ADD_ENTRY"
	actionDelete = "DELETE_ENTRY"
)

type Client struct {
	endpoint string
	hc       *http.Client
}

var _ remote.Ledger = (*Client)(nil)

// New returns a client for the given script endpoint. An empty endpoint
// yields an unconfigured client whose operations all report unavailable.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		hc:       &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an endpoint is set.
func (c *Client) Configured() bool {
	return c.endpoint != ""
}

// fetchResponse covers both the success and error shapes of the endpoint.
type fetchResponse struct {
	Entries []rawEntry `json:"entries"`
	Error   string     `json:"error"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// rawEntry mirrors one sheet row. Cell values arrive as whatever type the
// sheet stored, so every field is decoded loosely and coerced afterwards.
type rawEntry struct {
	ID        any `json:"id"`
	Amount    any `json:"amount"`
	Note      any `json:"note"`
	Type      any `json:"type"`
	Date      any `json:"date"`
	Time      any `json:"time"`
	CreatedAt any `json:"createdAt"`
}

// FetchAll requests the full remote collection. ok is false on transport
// failure, parse failure, or a remote-reported error.
func (c *Client) FetchAll(ctx context.Context, credential string) ([]core.Entry, bool) {
	if !c.Configured() {
		return nil, false
	}

	u := c.endpoint + "?pin=" + url.QueryEscape(credential) +
		"&v=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		slog.WarnContext(ctx, "Remote fetch request build failed", "error", err)
		return nil, false
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Remote fetch failed", "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	var body fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.WarnContext(ctx, "Remote fetch response unparseable", "error", err, "status", resp.StatusCode)
		return nil, false
	}
	if body.Error != "" {
		slog.WarnContext(ctx, "Remote fetch rejected", "remote_error", body.Error)
		return nil, false
	}

	entries := make([]core.Entry, 0, len(body.Entries))
	for _, raw := range body.Entries {
		e := coerceEntry(raw)
		if e.ID == "" {
			continue // rows without an id are discarded
		}
		entries = append(entries, e)
	}
	slog.InfoContext(ctx, "Fetched remote ledger", "count", len(entries))
	return entries, true
}

// Append pushes one new entry. Returns whether the remote acknowledged it.
func (c *Client) Append(ctx context.Context, e core.Entry, credential string) bool {
	payload := struct {
		Pin    string     `json:"pin"`
		Action string     `json:"action"`
		Entry  core.Entry `json:"entry"`
	}{Pin: credential, Action: actionAdd, Entry: e}

	ok, raw := c.postAction(ctx, payload)
	if !ok {
		slog.WarnContext(ctx, "Remote append not acknowledged", "id", e.ID)
		return false
	}
	// The endpoint may answer non-JSON on success; treat a 2xx as acked,
	// mirroring the lenient add path of the ledger script.
	if raw {
		slog.InfoContext(ctx, "Remote append accepted without JSON body", "id", e.ID)
	}
	return true
}

// RemoveByID pushes a deletion. Returns whether the remote acknowledged it.
func (c *Client) RemoveByID(ctx context.Context, id string, credential string) bool {
	payload := struct {
		Pin    string `json:"pin"`
		Action string `json:"action"`
		ID     string `json:"id"`
	}{Pin: credential, Action: actionDelete, ID: id}

	ok, raw := c.postAction(ctx, payload)
	if !ok || raw {
		// Deletion requires an explicit success acknowledgement.
		if ok {
			slog.WarnContext(ctx, "Remote delete answered without JSON body", "id", id)
		} else {
			slog.WarnContext(ctx, "Remote delete not acknowledged", "id", id)
		}
		return false
	}
	return true
}

// postAction sends the form-encoded action envelope. ok reports acceptance;
// rawBody is true when the response was a 2xx but not parseable JSON.
func (c *Client) postAction(ctx context.Context, payload any) (ok bool, rawBody bool) {
	if !c.Configured() {
		return false, false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.WarnContext(ctx, "Remote action marshal failed", "error", err)
		return false, false
	}

	form := url.Values{"data": {string(data)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		slog.WarnContext(ctx, "Remote action request build failed", "error", err)
		return false, false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Remote action failed", "error", err)
		return false, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, false
	}

	var result actionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		// Non-JSON body: fall back to the HTTP status.
		return resp.StatusCode >= 200 && resp.StatusCode < 300, true
	}
	if result.Error != "" {
		slog.WarnContext(ctx, "Remote action rejected", "remote_error", result.Error)
		return false, false
	}
	return result.Success, false
}

// coerceEntry sanitizes one remote row: non-numeric amount/createdAt become
// zero, unknown types become expense, dates are truncated to the date-only
// prefix. Entries with an empty id are dropped by the caller.
func coerceEntry(raw rawEntry) core.Entry {
	typ := core.Expense
	if asString(raw.Type) == string(core.Income) {
		typ = core.Income
	}

	date := strings.TrimSpace(asString(raw.Date))
	if i := strings.Index(date, "T"); i >= 0 {
		date = date[:i]
	}

	return core.Entry{
		ID:        strings.TrimSpace(asString(raw.ID)),
		Amount:    math.Abs(asFloat(raw.Amount)),
		Note:      asString(raw.Note),
		Type:      typ,
		Date:      date,
		Time:      asString(raw.Time),
		CreatedAt: asInt64(raw.CreatedAt),
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return ""
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
