package host

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/durable/internal/host/sqlvalue"
	"github.com/kosarica/durable/internal/store"
	"github.com/kosarica/durable/internal/testsupport"
	"github.com/kosarica/durable/internal/txn"
)

func TestSQLPluginRunReturnsColumnsAndRows(t *testing.T) {
	ctx := context.Background()
	s := testsupport.NewStore(ctx, t)
	tx, err := s.BeginDatabaseTxn(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	p := &SQLPlugin{}
	result := p.run(ctx, tx, sqlQuery{SQL: "SELECT 1::int4 AS n, 'hi'::text AS s"})

	require.Empty(t, result.Error)
	assert.Equal(t, []string{"n", "s"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "int4", result.Rows[0][0].Type)
	assert.JSONEq(t, "1", string(result.Rows[0][0].Data))
	assert.Equal(t, "text", result.Rows[0][1].Type)
	assert.JSONEq(t, `"hi"`, string(result.Rows[0][1].Data))
}

func TestSQLPluginRunRecordsErrorRatherThanFailing(t *testing.T) {
	ctx := context.Background()
	s := testsupport.NewStore(ctx, t)
	tx, err := s.BeginDatabaseTxn(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	p := &SQLPlugin{}
	result := p.run(ctx, tx, sqlQuery{SQL: "SELECT * FROM no_such_table"})

	assert.NotEmpty(t, result.Error)
	assert.Nil(t, result.Rows)
}

func TestSQLPluginRunEncodesParameters(t *testing.T) {
	ctx := context.Background()
	s := testsupport.NewStore(ctx, t)
	tx, err := s.BeginDatabaseTxn(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	p := &SQLPlugin{}
	result := p.run(ctx, tx, sqlQuery{
		SQL:    "SELECT $1::int4 + $2::int4 AS sum",
		Params: []sqlvalue.Value{{Type: "int4", Data: json.RawMessage("2")}, {Type: "int4", Data: json.RawMessage("3")}},
	})

	require.Empty(t, result.Error)
	require.Len(t, result.Rows, 1)
	assert.JSONEq(t, "5", string(result.Rows[0][0].Data))
}

func TestSQLPluginRunRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := testsupport.NewStore(ctx, t)
	tx, err := s.BeginDatabaseTxn(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	p := &SQLPlugin{}
	result := p.run(ctx, tx, sqlQuery{
		SQL:   "SELECT * FROM generate_series(1, 10) AS n",
		Limit: 3,
	})

	require.Empty(t, result.Error)
	assert.Len(t, result.Rows, 3)
}

func TestSQLPluginRegisterReplaysRecordedResultWithoutQuerying(t *testing.T) {
	recorded := sqlResult{Columns: []string{"n"}, Rows: [][]sqlvalue.Value{{{Type: "int4", Data: json.RawMessage("9")}}}}
	value, _ := json.Marshal(recorded)

	events := []store.Event{{TaskID: 1, Index: 0, Label: "sql:SELECT 9", Value: value}}
	state := txn.NewState(nil, 1, 1, events)

	reg := NewRegistry()
	p := &SQLPlugin{State: state}
	p.Register(reg)

	_, mod := moduleWithMemory(t, 1)
	fn := handlerFunc(t, reg, "durable:sql/sql", "query")

	q := sqlQuery{SQL: "SELECT 9"}
	qBytes, err := json.Marshal(q)
	require.NoError(t, err)
	n, err := writeJSON(mod, 0, 512, json.RawMessage(qBytes))
	require.NoError(t, err)

	stack := []uint64{0, uint64(n), 1024, 512}
	fn(context.Background(), mod, stack)

	outLen := uint32(stack[0])
	buf, ok := mod.Memory().Read(1024, outLen)
	require.True(t, ok)

	var got sqlResult
	require.NoError(t, json.Unmarshal(buf, &got))
	assert.Equal(t, recorded, got)
}

func TestSQLPluginRegisterLiveCommitsEventAtomicallyWithQuery(t *testing.T) {
	ctx := context.Background()
	s := testsupport.NewStore(ctx, t)
	taskID, workerID := submitClaimedTestTask(ctx, t, s, "sql-query")

	state := txn.NewState(s, taskID, workerID, nil)
	reg := NewRegistry()
	p := &SQLPlugin{State: state}
	p.Register(reg)

	_, mod := moduleWithMemory(t, 1)
	fn := handlerFunc(t, reg, "durable:sql/sql", "query")

	q := sqlQuery{SQL: "SELECT 42::int4 AS n"}
	qBytes, err := json.Marshal(q)
	require.NoError(t, err)
	n, err := writeJSON(mod, 0, 512, json.RawMessage(qBytes))
	require.NoError(t, err)

	stack := []uint64{0, uint64(n), 1024, 512}
	fn(context.Background(), mod, stack)

	outLen := uint32(stack[0])
	buf, ok := mod.Memory().Read(1024, outLen)
	require.True(t, ok)

	var got sqlResult
	require.NoError(t, json.Unmarshal(buf, &got))
	require.Empty(t, got.Error)
	assert.JSONEq(t, "42", string(got.Rows[0][0].Data))

	events, err := s.LoadEvents(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sql:"+q.SQL, events[0].Label)
}
