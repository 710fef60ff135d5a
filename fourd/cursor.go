package fourd

import (
	"context"

	"github.com/mbertoldi/go-fourd/codec"
	"github.com/mbertoldi/go-fourd/fourderr"
	"github.com/mbertoldi/go-fourd/protocol"
	"github.com/mbertoldi/go-fourd/rewrite"
)

// Cursor is an application-facing handle bound to a Connection (spec §3).
// Closing detaches any Result and marks the Cursor unusable.
type Cursor struct {
	conn      *Connection
	result    *Result
	arraySize int
	pageSize  int

	prepared      bool
	preparedQuery string
	closed        bool
	description   []ColumnDescription
}

func (cur *Cursor) checkUsable() error {
	if !cur.conn.connected {
		return fourderr.InternalError("fourd: not connected")
	}
	if cur.closed {
		return fourderr.InterfaceError("fourd: cursor closed")
	}
	return nil
}

// Execute rewrites query/params into positional form, preparing the
// statement if the cursor hasn't already prepared this exact query text,
// then executes it (spec §4.7). The first execute on a Connection (and
// after each commit/rollback) implicitly opens a transaction.
func (cur *Cursor) Execute(ctx context.Context, query string, params any) error {
	return cur.execute(ctx, query, params, true)
}

func (cur *Cursor) execute(ctx context.Context, query string, params any, describe bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cur.checkUsable(); err != nil {
		return err
	}

	rewritten, args, err := rewrite.Rewrite(query, params)
	if err != nil {
		return err
	}
	bound := make([]codec.BoundParam, len(args))
	for i, a := range args {
		bound[i] = codec.NewBoundParam(a)
	}

	if cur != cur.conn.housekeeping {
		if err := cur.conn.startTransaction(ctx); err != nil {
			return err
		}
	}

	if !cur.prepared || cur.preparedQuery != rewritten {
		cur.result = nil
		prepCmd, err := protocol.PrepareStatement(rewritten, bound, StatementUseBase64)
		if err != nil {
			return err
		}
		if err := cur.conn.wire.Send(prepCmd.Bytes()); err != nil {
			return fourderr.WrapOperational("fourd: send prepare-statement", err)
		}
		if _, err := protocol.ParseResponse(cur.conn.wire); err != nil {
			return err
		}
		cur.prepared = true
		cur.preparedQuery = rewritten
	}

	execCmd, err := protocol.ExecuteStatement(rewritten, bound, cur.pageSize, StatementUseBase64)
	if err != nil {
		return err
	}
	if err := cur.conn.wire.Send(execCmd.Bytes()); err != nil {
		return fourderr.WrapOperational("fourd: send execute-statement", err)
	}
	resp, err := protocol.ParseResponse(cur.conn.wire)
	if err != nil {
		return err
	}
	result, err := newResult(cur.conn, resp, cur.pageSize)
	if err != nil {
		return err
	}
	cur.result = result
	if describe {
		cur.describe()
	}
	return nil
}

func (cur *Cursor) describe() {
	if cur.result == nil || cur.result.kind != protocol.KindResultSet {
		cur.description = nil
		return
	}
	desc := make([]ColumnDescription, len(cur.result.columns))
	for i, col := range cur.result.columns {
		desc[i] = ColumnDescription{Name: col.Name, Type: col.HostType}
	}
	cur.description = desc
}

// ExecuteMany prepares once and executes once per row in paramRows, then
// clears the prepared flag (spec §4.7).
func (cur *Cursor) ExecuteMany(ctx context.Context, query string, paramRows []any) error {
	for _, params := range paramRows {
		if err := cur.execute(ctx, query, params, false); err != nil {
			return err
		}
	}
	cur.describe()
	cur.result = nil
	cur.prepared = false
	cur.preparedQuery = ""
	return nil
}

func (cur *Cursor) checkFetch() error {
	if err := cur.checkUsable(); err != nil {
		return err
	}
	if cur.result == nil {
		return fourderr.DataError("fourd: no rows to fetch")
	}
	return nil
}

// FetchOne returns the next row, or a zero Row and ok=false when
// exhausted (the Go analog of the original's None-on-exhaustion).
func (cur *Cursor) FetchOne() (Row, bool, error) {
	if err := cur.checkFetch(); err != nil {
		return Row{}, false, err
	}
	if cur.result.kind == protocol.KindUpdateCount || cur.result.rowCount == 0 {
		return Row{}, false, nil
	}
	return cur.result.FetchOne()
}

// FetchMany returns up to n rows; n defaults to the cursor's array size
// when n <= 0.
func (cur *Cursor) FetchMany(n int) ([]Row, error) {
	if err := cur.checkFetch(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = cur.arraySize
	}
	if cur.result.kind == protocol.KindUpdateCount || cur.result.rowCount == 0 {
		return nil, nil
	}
	return cur.result.FetchMany(n)
}

// FetchAll drains all remaining rows.
func (cur *Cursor) FetchAll() ([]Row, error) {
	if err := cur.checkFetch(); err != nil {
		return nil, err
	}
	return cur.result.FetchAll()
}

// Next implements the original's __iter__/__next__ iteration protocol:
// for row, ok := cur.Next(); ok; row, ok = cur.Next() {}
func (cur *Cursor) Next() (Row, bool) {
	row, ok, err := cur.FetchOne()
	if err != nil || !ok {
		return Row{}, false
	}
	return row, true
}

// Close detaches any Result and marks the cursor unusable. Closing a
// cursor with unread rows is not an error.
func (cur *Cursor) Close() error {
	if cur.closed {
		return nil
	}
	cur.closed = true
	cur.description = nil
	if cur.result == nil {
		return nil
	}
	result := cur.result
	cur.result = nil
	return result.Close()
}

// Description returns one entry per column of the cursor's current
// result, or nil when there is none (spec §6.2).
func (cur *Cursor) Description() []ColumnDescription { return cur.description }

// RowCount returns the server-declared total for the current result, or
// -1 when there is none.
func (cur *Cursor) RowCount() int {
	if cur.result == nil {
		return -1
	}
	if cur.result.kind == protocol.KindUpdateCount {
		return int(cur.result.updateCount)
	}
	return cur.result.rowCount
}

// RowNumber returns how many rows have been consumed from the current
// result, or -1 when there is none.
func (cur *Cursor) RowNumber() int {
	if cur.result == nil {
		return -1
	}
	return cur.result.rowNumber
}
