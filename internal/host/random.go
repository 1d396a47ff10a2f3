package host

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"
)

// RandomPlugin implements getrandom(n), returning n bytes. It does not go
// through the transaction protocol and records no event: the bytes are
// sha256 blocks derived from (task_id, task_name, call counter), so a
// replay of the same calls reproduces them. It does not draw from
// internal/randsrc.
type RandomPlugin struct {
	TaskID   int64
	TaskName string

	counter uint64
}

func (p *RandomPlugin) Register(reg *Registry) {
	reg.Add(Handler{
		Module: "wasi:random/random", Name: "get-random-bytes",
		Params:  []api.ValueType{api.ValueTypeI64, api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Func: func(ctx context.Context, mod api.Module, stack []uint64) {
			n := api.DecodeU32(stack[1])
			ptr := api.DecodeU32(stack[2])
			buf := p.generate(n)
			if !mod.Memory().Write(ptr, buf) {
				panic("durable: getrandom write out of range")
			}
			stack[0] = uint64(len(buf))
		},
	})
}

// generate returns the next n deterministic pseudorandom bytes for this
// task, built from sha256(task_id || task_name || counter) blocks.
func (p *RandomPlugin) generate(n uint32) []byte {
	out := make([]byte, 0, n)
	for uint32(len(out)) < n {
		var block [8]byte
		binary.BigEndian.PutUint64(block[:], p.counter)
		p.counter++

		h := sha256.New()
		var idBuf [8]byte
		binary.BigEndian.PutUint64(idBuf[:], uint64(p.TaskID))
		h.Write(idBuf[:])
		h.Write([]byte(p.TaskName))
		h.Write(block[:])
		out = append(out, h.Sum(nil)...)
	}
	return out[:n]
}
