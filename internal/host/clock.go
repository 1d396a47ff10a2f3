package host

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kosarica/durable/internal/txn"
	"github.com/tetratelabs/wazero/api"
)

// ClockPlugin implements wall_clock_now/monotonic_now as transactions with
// label "now" (spec.md §4.6). On replay the recorded timestamp is
// returned; wall-clock monotonicity between calls across restarts is not
// guaranteed, matching original_source/crates/durable-runtime/src/clock.rs's
// documented caveat.
type ClockPlugin struct {
	State *txn.State
}

type clockValue struct {
	UnixMillis int64 `json:"unix_millis"`
}

func (p *ClockPlugin) Register(reg *Registry) {
	now := func(ctx context.Context, mod api.Module, stack []uint64) {
		raw := p.State.Enter(ctx, "now", func(ctx context.Context) ([]byte, *string, error) {
			v := clockValue{UnixMillis: time.Now().UnixMilli()}
			b, err := json.Marshal(v)
			return b, nil, err
		})
		var v clockValue
		if err := json.Unmarshal(raw, &v); err != nil {
			panic(err)
		}
		stack[0] = api.EncodeI64(v.UnixMillis)
	}

	reg.Add(Handler{
		Module: "wasi:clocks/wall-clock", Name: "now",
		Results: []api.ValueType{api.ValueTypeI64},
		Func:    now,
	})
	reg.Add(Handler{
		Module: "wasi:clocks/monotonic-clock", Name: "now",
		Results: []api.ValueType{api.ValueTypeI64},
		Func:    now,
	})
}
