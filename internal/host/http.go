package host

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kosarica/durable/internal/txn"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/time/rate"
)

// HTTPPlugin builds and performs a single request per transaction,
// serializing status/headers/body as the event value (spec.md §4.6).
// Grounded on the teacher's internal/http/client.go shared-client
// conventions, re-themed from an outbound ingestion fetcher into this
// host-call plugin; the retry/backoff wrapper the teacher layered around
// it (internal/http/ratelimit) is intentionally dropped (DESIGN.md) since
// the transaction protocol performs the request exactly once per log
// entry — retrying is the workflow author's job, re-entering a fresh
// transaction.
type HTTPPlugin struct {
	State   *txn.State
	Client  *http.Client
	Limiter *rate.Limiter // outbound shaping only, never a retry mechanism
}

// NewHTTPPlugin builds a plugin with the teacher's default client shape
// (bounded timeout, no implicit retries) and a conservative outbound rate
// limit guarding a single task's fetch calls.
func NewHTTPPlugin(state *txn.State) *HTTPPlugin {
	return &HTTPPlugin{
		State: state,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		Limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

type httpRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

type httpResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
	Error   string            `json:"error,omitempty"`
}

func (p *HTTPPlugin) Register(reg *Registry) {
	reg.Add(Handler{
		Module: "durable:http/http", Name: "fetch",
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Func: func(ctx context.Context, mod api.Module, stack []uint64) {
			args := stackArgs(stack, 4)

			var req httpRequest
			if err := readJSON(mod, args[0], args[1], &req); err != nil {
				panic(err)
			}

			raw := p.State.Enter(ctx, "http:"+req.Method+" "+req.URL, func(ctx context.Context) ([]byte, *string, error) {
				resp := p.do(ctx, req)
				b, err := json.Marshal(resp)
				return b, nil, err
			})

			n, err := writeJSON(mod, args[2], args[3], json.RawMessage(raw))
			if err != nil {
				panic(err)
			}
			stack[0] = uint64(n)
		},
	})
}

// do performs the request exactly once, shaped by Limiter, and always
// returns a response value — transport errors are recorded as the Error
// field of httpResponse rather than as a Go error, so replay reproduces
// the same outcome without re-dialing.
func (p *HTTPPlugin) do(ctx context.Context, req httpRequest) httpResponse {
	if err := p.Limiter.Wait(ctx); err != nil {
		return httpResponse{Error: err.Error()}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return httpResponse{Error: err.Error()}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return httpResponse{Error: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpResponse{Error: err.Error()}
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return httpResponse{Status: resp.StatusCode, Headers: headers, Body: respBody}
}
