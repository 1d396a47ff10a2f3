package host

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero/api"
)

// CorePlugin exposes task_id/task_name/task_data/task_created_at: all
// deterministic reads of the claimed Task row, cached at instantiation
// time. They never go through the event log (spec.md §4.6).
type CorePlugin struct {
	TaskID    int64
	TaskName  string
	TaskData  []byte
	CreatedAt time.Time
}

const coreModule = "durable:core/core"

// Register wires the core plugin's functions into reg.
func (p *CorePlugin) Register(reg *Registry) {
	reg.Add(Handler{
		Module: coreModule, Name: "task-id",
		Results: []api.ValueType{api.ValueTypeI64},
		Func: func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = api.EncodeI64(p.TaskID)
		},
	})

	reg.Add(Handler{
		Module: coreModule, Name: "task-name",
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Func: func(ctx context.Context, mod api.Module, stack []uint64) {
			args := stackArgs(stack, 2)
			n, err := writeJSON(mod, args[0], args[1], p.TaskName)
			if err != nil {
				panic(err)
			}
			stack[0] = uint64(n)
		},
	})

	reg.Add(Handler{
		Module: coreModule, Name: "task-data",
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Func: func(ctx context.Context, mod api.Module, stack []uint64) {
			args := stackArgs(stack, 2)
			n := uint32(len(p.TaskData))
			if n > args[1] {
				n = args[1]
			}
			if !mod.Memory().Write(args[0], p.TaskData[:n]) {
				panic("durable: task-data write out of range")
			}
			stack[0] = uint64(n)
		},
	})

	reg.Add(Handler{
		Module: coreModule, Name: "task-created-at",
		Results: []api.ValueType{api.ValueTypeI64},
		Func: func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = api.EncodeI64(p.CreatedAt.UnixMilli())
		},
	})
}
