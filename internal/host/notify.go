package host

import (
	"context"
	"encoding/json"

	"github.com/kosarica/durable/internal/store"
	"github.com/kosarica/durable/internal/txn"
	"github.com/tetratelabs/wazero/api"
)

// NotifyPlugin implements notification_blocking(): dequeue a queued
// notification if one exists, else suspend (spec.md §4.6).
type NotifyPlugin struct {
	Store  *store.Store
	TaskID int64
	State  *txn.State
}

type notifyValue struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (p *NotifyPlugin) Register(reg *Registry) {
	reg.Add(Handler{
		Module: "durable:notify/notify", Name: "notification-blocking",
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Func: func(ctx context.Context, mod api.Module, stack []uint64) {
			args := stackArgs(stack, 2)

			val := p.State.EnterNotify(ctx, func(ctx context.Context) ([]byte, *string, bool, error) {
				n, ok, err := p.Store.FetchNextNotification(ctx, p.TaskID)
				if err != nil {
					return nil, nil, false, err
				}
				if !ok {
					return nil, nil, false, nil
				}
				b, err := json.Marshal(notifyValue{Event: n.Event, Data: json.RawMessage(n.Data)})
				return b, nil, true, err
			})

			n, err := writeJSON(mod, args[0], args[1], json.RawMessage(val))
			if err != nil {
				panic(err)
			}
			stack[0] = uint64(n)
		},
	})
}
