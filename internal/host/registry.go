// Package host implements the host-call plugins of spec.md §4.6: clock,
// random, HTTP, SQL, notify, and core task identity. The clock, HTTP, SQL
// and notify plugins go through internal/txn's transaction protocol; the
// core plugin serves task identity cached at instantiation and the random
// plugin derives its bytes deterministically per task, so neither of those
// two records events. Dynamic dispatch between plugins is a
// Registry mapping WIT-style import identifiers to handler function
// values (DESIGN.md — the Go analogue of the teacher source's
// Vec<Box<dyn Plugin>> dispatch table), not a type switch.
package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// RuntimeVersion is this host's declared version. Nothing reads it when
// binding a guest: the executor does not check a guest's required runtime
// version against it.
const RuntimeVersion = "1.0.0"

// Handler is one bound host function, keyed by its WIT-style import
// identifier ("durable:core/core#task-id", "wasi:clocks/wall-clock#now",
// …). The signature follows wazero's GoModuleFunc: params and results are
// exchanged as raw uint64 stack slots, with JSON payloads passed through
// guest linear memory as (ptr, len) pairs for anything beyond a scalar.
type Handler struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Func    api.GoModuleFunc
}

// Registry collects the handlers for one task executor's bound host
// modules and instantiates them against a wazero runtime.
type Registry struct {
	byModule map[string][]Handler
}

// NewRegistry returns an empty Registry; plugins register themselves into
// it via Registry.Add.
func NewRegistry() *Registry {
	return &Registry{byModule: make(map[string][]Handler)}
}

// Add registers h under its module namespace.
func (r *Registry) Add(h Handler) {
	r.byModule[h.Module] = append(r.byModule[h.Module], h)
}

// Instantiate builds and instantiates one wazero host module per
// namespace collected in the registry (durable:core, wasi:clocks,
// wasi:random, durable:http, durable:sql, durable:notify).
func (r *Registry) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	for module, handlers := range r.byModule {
		b := rt.NewHostModuleBuilder(module)
		for _, h := range handlers {
			b.NewFunctionBuilder().
				WithGoModuleFunction(h.Func, h.Params, h.Results).
				Export(h.Name)
		}
		if _, err := b.Instantiate(ctx); err != nil {
			return fmt.Errorf("host: instantiate module %q: %w", module, err)
		}
	}
	return nil
}

// readMemory reads length bytes at ptr from the guest's exported memory.
func readMemory(mod api.Module, ptr, length uint32) ([]byte, bool) {
	return mod.Memory().Read(ptr, length)
}

// writeJSON marshals v and writes it into the guest buffer at
// (ptr, capacity), returning the number of bytes written. If v does not
// fit, it is truncated — callers are expected to size response buffers
// generously or pre-negotiate via a length probe, matching the
// guest-discards-early streaming contract used by the SQL plugin.
func writeJSON(mod api.Module, ptr, capacity uint32, v any) (uint32, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	n := uint32(len(buf))
	if n > capacity {
		n = capacity
	}
	if !mod.Memory().Write(ptr, buf[:n]) {
		return 0, fmt.Errorf("host: write %d bytes at %#x out of range", n, ptr)
	}
	return n, nil
}

// readJSON reads (ptr, length) from guest memory and unmarshals it into v.
func readJSON(mod api.Module, ptr, length uint32, v any) error {
	buf, ok := readMemory(mod, ptr, length)
	if !ok {
		return fmt.Errorf("host: read %d bytes at %#x out of range", length, ptr)
	}
	return json.Unmarshal(buf, v)
}

// stackArgs is a small helper for GoModuleFunc bodies to read uint32
// arguments off the stack by position, improving on raw stack[i] index
// arithmetic at every call site.
func stackArgs(stack []uint64, n int) []uint32 {
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = api.DecodeU32(stack[i])
	}
	return out
}
