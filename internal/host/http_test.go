package host

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/kosarica/durable/internal/store"
	"github.com/kosarica/durable/internal/testsupport"
	"github.com/kosarica/durable/internal/txn"
)

func TestHTTPPluginDoReturnsStatusHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Echo", r.Header.Get("X-Request"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	p := &HTTPPlugin{
		Client:  srv.Client(),
		Limiter: rate.NewLimiter(rate.Inf, 1),
	}

	resp := p.do(context.Background(), httpRequest{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Headers: map[string]string{"X-Request": "abc"},
	})

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "abc", resp.Headers["X-Echo"])
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Empty(t, resp.Error)
}

func TestHTTPPluginDoRecordsTransportErrorRatherThanFailing(t *testing.T) {
	p := &HTTPPlugin{
		Client:  http.DefaultClient,
		Limiter: rate.NewLimiter(rate.Inf, 1),
	}

	resp := p.do(context.Background(), httpRequest{Method: http.MethodGet, URL: "http://127.0.0.1:0/unreachable"})

	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, 0, resp.Status)
}

func TestHTTPPluginDoPostsBody(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &HTTPPlugin{Client: srv.Client(), Limiter: rate.NewLimiter(rate.Inf, 1)}
	resp := p.do(context.Background(), httpRequest{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   []byte(`hello`),
	})

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "hello", string(gotBody))
}

func TestHTTPPluginRegisterReplaysRecordedResponseWithoutDialing(t *testing.T) {
	recorded := httpResponse{Status: 200, Body: []byte("cached")}
	value, _ := json.Marshal(recorded)

	events := []store.Event{{TaskID: 1, Index: 0, Label: "http:GET http://example.invalid/unreachable", Value: value}}
	state := txn.NewState(nil, 1, 1, events)

	reg := NewRegistry()
	p := &HTTPPlugin{State: state, Client: http.DefaultClient, Limiter: rate.NewLimiter(rate.Inf, 1)}
	p.Register(reg)

	_, mod := moduleWithMemory(t, 1)
	fn := handlerFunc(t, reg, "durable:http/http", "fetch")

	req := httpRequest{Method: http.MethodGet, URL: "http://example.invalid/unreachable"}
	reqBytes, err := json.Marshal(req)
	require.NoError(t, err)
	n, err := writeJSON(mod, 0, 512, json.RawMessage(reqBytes))
	require.NoError(t, err)

	stack := []uint64{0, uint64(n), 1024, 512}
	fn(context.Background(), mod, stack)

	outLen := uint32(stack[0])
	buf, ok := mod.Memory().Read(1024, outLen)
	require.True(t, ok)

	var got httpResponse
	require.NoError(t, json.Unmarshal(buf, &got))
	assert.Equal(t, recorded, got)
}

func TestHTTPPluginRegisterLivePerformsFetchAndRecordsEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("live"))
	}))
	defer srv.Close()

	ctx := context.Background()
	s := testsupport.NewStore(ctx, t)
	taskID, workerID := submitClaimedTestTask(ctx, t, s, "http-fetch")

	state := txn.NewState(s, taskID, workerID, nil)
	reg := NewRegistry()
	p := &HTTPPlugin{State: state, Client: srv.Client(), Limiter: rate.NewLimiter(rate.Inf, 1)}
	p.Register(reg)

	_, mod := moduleWithMemory(t, 1)
	fn := handlerFunc(t, reg, "durable:http/http", "fetch")

	req := httpRequest{Method: http.MethodGet, URL: srv.URL}
	reqBytes, err := json.Marshal(req)
	require.NoError(t, err)
	n, err := writeJSON(mod, 0, 512, json.RawMessage(reqBytes))
	require.NoError(t, err)

	stack := []uint64{0, uint64(n), 1024, 512}
	fn(context.Background(), mod, stack)

	outLen := uint32(stack[0])
	buf, ok := mod.Memory().Read(1024, outLen)
	require.True(t, ok)

	var got httpResponse
	require.NoError(t, json.Unmarshal(buf, &got))
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, "live", string(got.Body))

	events, err := s.LoadEvents(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "http:GET "+srv.URL, events[0].Label)
}
