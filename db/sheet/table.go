// Package sheet stores the order table in a remote spreadsheet reached over
// its JSON HTTP API.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"travelbook/codec"
	dbt "travelbook/db/db"
)

const (
	DefaultMaxRows = 5000
	DefaultTimeout = 10 * time.Second

	sheetsPath = "/open-apis/sheets/v2/spreadsheets/"
)

// upstream codes meaning the bearer token is no longer accepted
var tokenRejectedCodes = map[int]bool{
	99991661: true,
	99991663: true,
	99991668: true,
}

// TokenSource yields bearer tokens. *auth.TokenManager satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

type Config struct {
	BaseURL string
	// Collection is the spreadsheet token, SheetID the tab inside it.
	Collection string
	SheetID    string
	MaxRows    int
	Timeout    time.Duration
}

// SheetTableWrapper implements dbt.TableWrapper over one spreadsheet tab.
type SheetTableWrapper struct {
	cfg        Config
	tokens     TokenSource
	httpClient *http.Client
}

func NewSheetTableWrapper(cfg Config, tokens TokenSource, httpClient *http.Client) *SheetTableWrapper {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &SheetTableWrapper{cfg: cfg, tokens: tokens, httpClient: httpClient}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type valueRange struct {
	Range  string      `json:"range"`
	Values []codec.Row `json:"values"`
}

type readData struct {
	ValueRange valueRange `json:"valueRange"`
}

type writeBody struct {
	ValueRange valueRange `json:"valueRange"`
}

type clearBody struct {
	Ranges []string `json:"ranges"`
}

// ColumnLetter converts a 1-based column index to spreadsheet letters (1 → A, 27 → AA).
func ColumnLetter(n int) string {
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

func (w *SheetTableWrapper) lastColumn() string {
	return ColumnLetter(len(codec.Columns))
}

func (w *SheetTableWrapper) rangeOf(from string, lastRow int) string {
	return fmt.Sprintf("%s!%s:%s%d", w.cfg.SheetID, from, w.lastColumn(), lastRow)
}

func (w *SheetTableWrapper) endpoint(suffix string) string {
	return w.cfg.BaseURL + sheetsPath + url.PathEscape(w.cfg.Collection) + suffix
}

// Load reads the whole range and checks the header when any rows are present.
func (w *SheetTableWrapper) Load(ctx context.Context) ([]codec.Row, error) {
	target := w.endpoint("/values/" + url.PathEscape(w.rangeOf("A1", w.cfg.MaxRows)))
	data, err := w.call(ctx, "load", http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	var payload readData
	if len(data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, &dbt.BackendError{Backend: dbt.BackendSheet, Op: "load", Msg: "decode values", Err: err}
		}
	}
	rows := trimTrailingBlank(payload.ValueRange.Values)
	if len(rows) == 0 {
		return []codec.Row{}, nil
	}
	if err := codec.CheckHeader(rows[0]); err != nil {
		return nil, err
	}
	slog.Debug("loaded sheet", "collection", w.cfg.Collection, "sheet", w.cfg.SheetID, "rows", len(rows))
	return rows, nil
}

// ReplaceAll clears the data area and writes header plus rows from A1.
// The clear is best effort; the write is not.
func (w *SheetTableWrapper) ReplaceAll(ctx context.Context, rows []codec.Row) error {
	clearReq := clearBody{Ranges: []string{w.rangeOf("A2", w.cfg.MaxRows)}}
	if _, err := w.call(ctx, "clear", http.MethodPost, w.endpoint("/values_batch_clear"), clearReq); err != nil {
		var backendErr *dbt.BackendError
		if !errors.As(err, &backendErr) {
			// auth failures abort the whole write
			return err
		}
		slog.Warn("failed to clear sheet before write, continuing", "err", err)
	}

	values := make([]codec.Row, 0, len(rows)+1)
	values = append(values, codec.Header())
	values = append(values, rows...)
	body := writeBody{ValueRange: valueRange{
		Range:  w.rangeOf("A1", len(values)),
		Values: values,
	}}
	if _, err := w.call(ctx, "replace_all", http.MethodPut, w.endpoint("/values"), body); err != nil {
		return err
	}
	slog.Debug("wrote sheet", "collection", w.cfg.Collection, "sheet", w.cfg.SheetID, "rows", len(rows))
	return nil
}

// call performs one authenticated request and returns the data member of the envelope.
func (w *SheetTableWrapper) call(ctx context.Context, op, method, target string, body any) (json.RawMessage, error) {
	token, err := w.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &dbt.BackendError{Backend: dbt.BackendSheet, Op: op, Msg: "encode request", Err: err}
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &dbt.BackendError{Backend: dbt.BackendSheet, Op: op, Msg: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, &dbt.BackendError{Backend: dbt.BackendSheet, Op: op, Msg: "do request", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &dbt.BackendError{Backend: dbt.BackendSheet, Op: op, Msg: "read response", Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode == http.StatusUnauthorized || tokenRejectedCodes[env.Code] {
		w.tokens.Invalidate(ctx)
	}
	if resp.StatusCode >= 300 {
		e := &dbt.BackendError{Backend: dbt.BackendSheet, Op: op, Code: env.Code, Msg: env.Msg}
		if e.Msg == "" {
			e.Msg = fmt.Sprintf("http %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		}
		return nil, e
	}
	if decodeErr != nil {
		return nil, &dbt.BackendError{Backend: dbt.BackendSheet, Op: op, Msg: "decode response", Err: decodeErr}
	}
	if env.Code != 0 {
		return nil, &dbt.BackendError{Backend: dbt.BackendSheet, Op: op, Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

// trimTrailingBlank drops the empty rows a fixed-size range read pads with.
func trimTrailingBlank(rows []codec.Row) []codec.Row {
	end := len(rows)
	for end > 0 && codec.IsBlankRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}
