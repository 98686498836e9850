package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/auth"
	"travelbook/codec"
	dbt "travelbook/db/db"
	"travelbook/order"
)

type fakeTokens struct {
	err         error
	invalidated int
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

func (f *fakeTokens) Invalidate(context.Context) { f.invalidated++ }

type recorded struct {
	method string
	path   string
	body   map[string]any
}

type fakeSheet struct {
	t         *testing.T
	mu        sync.Mutex
	requests  []recorded
	values    []codec.Row
	readCode  int
	clearCode int
	writeCode int
	status    int
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(f.t, "Bearer tok", r.Header.Get("Authorization"))

	rec := recorded{method: r.Method, path: r.URL.Path}
	if r.Body != nil && r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
	}
	f.requests = append(f.requests, rec)

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"code":1,"msg":"server down"}`))
		return
	}
	switch r.Method {
	case http.MethodGet:
		resp := map[string]any{"code": f.readCode, "msg": "read failed"}
		if f.readCode == 0 {
			resp["data"] = map[string]any{"valueRange": map[string]any{"values": f.values}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	case http.MethodPost:
		_ = json.NewEncoder(w).Encode(map[string]any{"code": f.clearCode, "msg": "clear failed"})
	case http.MethodPut:
		_ = json.NewEncoder(w).Encode(map[string]any{"code": f.writeCode, "msg": "write failed"})
	}
}

func newTestWrapper(t *testing.T, f *fakeSheet, tokens TokenSource) *SheetTableWrapper {
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewSheetTableWrapper(Config{BaseURL: srv.URL, Collection: "shtABC", SheetID: "s1", MaxRows: 100}, tokens, srv.Client())
}

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{22, "V"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{703, "AAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnLetter(tt.n))
	}
}

func TestLoadReadsRange(t *testing.T) {
	f := &fakeSheet{values: []codec.Row{codec.Header(), {1, "张三"}, {}}}
	w := newTestWrapper(t, f, &fakeTokens{})

	rows, err := w.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.Len(t, f.requests, 1)
	assert.Equal(t, "/open-apis/sheets/v2/spreadsheets/shtABC/values/s1!A1:V100", f.requests[0].path)
}

func TestLoadEmptySheet(t *testing.T) {
	w := newTestWrapper(t, &fakeSheet{}, &fakeTokens{})
	rows, err := w.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadSchemaMismatch(t *testing.T) {
	f := &fakeSheet{values: []codec.Row{{"id", "name"}}}
	w := newTestWrapper(t, f, &fakeTokens{})
	_, err := w.Load(context.Background())
	var mismatch *codec.SchemaMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestLoadUpstreamCode(t *testing.T) {
	f := &fakeSheet{readCode: 90202}
	w := newTestWrapper(t, f, &fakeTokens{})
	_, err := w.Load(context.Background())
	var backendErr *dbt.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, 90202, backendErr.Code)
	assert.Equal(t, "read failed", backendErr.Msg)
	assert.Equal(t, "load", backendErr.Op)
}

func TestLoadHTTPStatus(t *testing.T) {
	f := &fakeSheet{status: http.StatusBadGateway}
	w := newTestWrapper(t, f, &fakeTokens{})
	_, err := w.Load(context.Background())
	var backendErr *dbt.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "server down", backendErr.Msg)
}

func TestTokenRejectedInvalidates(t *testing.T) {
	f := &fakeSheet{readCode: 99991663}
	tokens := &fakeTokens{}
	w := newTestWrapper(t, f, tokens)
	_, err := w.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, tokens.invalidated)
}

func TestAuthErrorPropagates(t *testing.T) {
	f := &fakeSheet{}
	authErr := &auth.AuthError{Code: 10014, Msg: "bad secret"}
	w := newTestWrapper(t, f, &fakeTokens{err: authErr})

	_, err := w.Load(context.Background())
	assert.Same(t, authErr, err)

	err = w.ReplaceAll(context.Background(), nil)
	assert.Same(t, authErr, err)
	assert.Empty(t, f.requests)
}

func TestReplaceAllShapes(t *testing.T) {
	f := &fakeSheet{}
	w := newTestWrapper(t, f, &fakeTokens{})

	o := order.Order{ID: 1}
	o.CustomerName = "张三"
	rows := codec.EncodeTable([]order.Order{o})
	require.NoError(t, w.ReplaceAll(context.Background(), rows))

	require.Len(t, f.requests, 2)
	clearReq := f.requests[0]
	assert.Equal(t, http.MethodPost, clearReq.method)
	assert.Equal(t, "/open-apis/sheets/v2/spreadsheets/shtABC/values_batch_clear", clearReq.path)
	assert.Equal(t, []any{"s1!A2:V100"}, clearReq.body["ranges"])

	write := f.requests[1]
	assert.Equal(t, http.MethodPut, write.method)
	assert.Equal(t, "/open-apis/sheets/v2/spreadsheets/shtABC/values", write.path)
	vr := write.body["valueRange"].(map[string]any)
	assert.Equal(t, "s1!A1:V2", vr["range"])
	values := vr["values"].([]any)
	require.Len(t, values, 2)
	assert.Equal(t, "id", values[0].([]any)[0])
	assert.Equal(t, "张三", values[1].([]any)[1])
}

func TestReplaceAllToleratesClearFailure(t *testing.T) {
	f := &fakeSheet{clearCode: 1}
	w := newTestWrapper(t, f, &fakeTokens{})
	require.NoError(t, w.ReplaceAll(context.Background(), nil))
	assert.Len(t, f.requests, 2)
}

func TestReplaceAllWriteFailure(t *testing.T) {
	f := &fakeSheet{writeCode: 90217}
	w := newTestWrapper(t, f, &fakeTokens{})
	err := w.ReplaceAll(context.Background(), nil)
	var backendErr *dbt.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, 90217, backendErr.Code)
	assert.Equal(t, "replace_all", backendErr.Op)
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	w := NewSheetTableWrapper(Config{BaseURL: srv.URL, Collection: "c", SheetID: "s", Timeout: 50 * time.Millisecond}, &fakeTokens{}, nil)
	_, err := w.Load(context.Background())
	var backendErr *dbt.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
