package host

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/kosarica/durable/internal/host/sqlvalue"
	"github.com/kosarica/durable/internal/txn"
	"github.com/tetratelabs/wazero/api"
)

// SQLPlugin implements database-kind transactions only (spec.md §4.6):
// guest calls map 1:1 to the shared connection's query protocol, with an
// optional server-side row limit; if the guest discards the stream early,
// the executor still drains and discards remaining rows before the
// transaction closes, which pgx.Rows.Close does implicitly by reading any
// buffered result to completion.
type SQLPlugin struct {
	State *txn.State
}

type sqlQuery struct {
	SQL    string           `json:"sql"`
	Params []sqlvalue.Value `json:"params"`
	Limit  int              `json:"limit"` // 0 means unlimited
}

type sqlResult struct {
	Columns []string           `json:"columns"`
	Rows    [][]sqlvalue.Value `json:"rows"`
	Error   string             `json:"error,omitempty"`
}

func (p *SQLPlugin) Register(reg *Registry) {
	reg.Add(Handler{
		Module: "durable:sql/sql", Name: "query",
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Func: func(ctx context.Context, mod api.Module, stack []uint64) {
			args := stackArgs(stack, 4)

			var q sqlQuery
			if err := readJSON(mod, args[0], args[1], &q); err != nil {
				panic(err)
			}

			raw := p.State.EnterDatabase(ctx, "sql:"+q.SQL, func(ctx context.Context, tx pgx.Tx) ([]byte, *string, error) {
				result := p.run(ctx, tx, q)
				b, err := json.Marshal(result)
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

// run executes q against tx exactly once, always returning a result value
// (errors are recorded in sqlResult.Error, not returned as a Go error, so
// replay reproduces the same guest-observable outcome).
func (p *SQLPlugin) run(ctx context.Context, tx pgx.Tx, q sqlQuery) sqlResult {
	params := make([]any, len(q.Params))
	for i, v := range q.Params {
		enc, err := sqlvalue.EncodeParam(v)
		if err != nil {
			return sqlResult{Error: err.Error()}
		}
		params[i] = enc
	}

	rows, err := tx.Query(ctx, q.SQL, params...)
	if err != nil {
		return sqlResult{Error: err.Error()}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var out [][]sqlvalue.Value
	count := 0
	for rows.Next() {
		if q.Limit > 0 && count >= q.Limit {
			// Guest capped the result; stop consuming but still let the
			// deferred rows.Close() drain whatever is left so the
			// transaction can commit cleanly.
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return sqlResult{Error: err.Error()}
		}

		row := make([]sqlvalue.Value, len(vals))
		for i, v := range vals {
			oid := fields[i].DataTypeOID
			enc, err := sqlvalue.DecodeColumn(oid, v)
			if err != nil {
				return sqlResult{Error: err.Error()}
			}
			row[i] = enc
		}
		out = append(out, row)
		count++
	}
	if err := rows.Err(); err != nil {
		return sqlResult{Error: err.Error()}
	}

	return sqlResult{Columns: columns, Rows: out}
}
