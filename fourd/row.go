package fourd

import "reflect"

// Row is one fetched result row, addressable by column name or ordinal
// position. The original driver returns a namedtuple; Go has no anonymous
// tuple-with-field-names equivalent, so both access patterns live on one
// type instead of picking just one.
type Row struct {
	values map[string]any
	order  []any
}

func newRow(columns []string, values []any) Row {
	m := make(map[string]any, len(columns))
	for i, name := range columns {
		m[name] = values[i]
	}
	return Row{values: m, order: values}
}

// Get returns the value of the named column and whether it was present.
func (r Row) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// At returns the value at ordinal position i (0-based, column order).
func (r Row) At(i int) any {
	if i < 0 || i >= len(r.order) {
		return nil
	}
	return r.order[i]
}

// Len reports the number of columns in the row.
func (r Row) Len() int { return len(r.order) }

// ColumnDescription is the 7-field description tuple analog (spec §6.2):
// "(name, host-type, None, None, None, None, None)". Every field but Name
// and Type is always nil, matching the original's literal Nones.
type ColumnDescription struct {
	Name         string
	Type         reflect.Type
	DisplaySize  *int
	InternalSize *int
	Precision    *int
	Scale        *int
	NullOk       *bool
}
