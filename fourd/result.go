package fourd

import (
	"fmt"

	"github.com/mbertoldi/go-fourd/codec"
	"github.com/mbertoldi/go-fourd/fourderr"
	"github.com/mbertoldi/go-fourd/protocol"
)

// Result is the server-side cursor backing one executed statement (spec
// §4.5). It owns the statement-id and is responsible for draining result
// rows off the connection's single socket in FIFO order; conn is borrowed,
// never owned (closing a Result never closes the Connection).
type Result struct {
	conn         *Connection
	kind         protocol.ResponseKind
	columns      []codec.Column
	statementID  int64
	rowCount     int
	rowsReceived int
	rowNumber    int
	buf          []Row
	updateCount  int64
	updatable    bool
	pageSize     int
	invalid      bool
}

func newResult(conn *Connection, resp *protocol.Response, pageSize int) (*Result, error) {
	r := &Result{
		conn:        conn,
		kind:        resp.Kind,
		columns:     resp.Columns,
		statementID: resp.StatementID,
		rowCount:    resp.RowCount,
		updateCount: resp.UpdateCount,
		updatable:   resp.Updatable,
		pageSize:    pageSize,
	}
	if resp.Kind == protocol.KindResultSet {
		if err := r.drainInitialPage(resp.RowCountSent); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// columnNames returns the column names in declared order, used to build
// each Row's name-keyed view.
func (r *Result) columnNames() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Name
	}
	return names
}

// drainInitialPage reads the n rows piggybacked immediately after the
// result-set header (spec §4.5).
func (r *Result) drainInitialPage(n int) error {
	names := r.columnNames()
	for i := 0; i < n; i++ {
		row, err := r.readRow(names)
		if err != nil {
			r.invalid = true
			return err
		}
		r.buf = append(r.buf, row)
		r.rowsReceived++
	}
	return nil
}

// readRowStatus reads one status byte off r and decodes it as an ASCII
// digit ('0'/'1'/'2' = 0x30/0x31/0x32), the wire form the server actually
// sends (and the form BindParams already writes for outbound presence
// bytes, protocol/command.go's buf.WriteByte('0')/('1')) — not a raw
// 0/1/2 byte.
func readRowStatus(r interface{ RecvExact(int) ([]byte, error) }) (int, error) {
	b, err := r.RecvExact(1)
	if err != nil {
		return 0, err
	}
	d := b[0] - '0'
	if d > 2 {
		return 0, fourderr.InternalError(fmt.Sprintf("fourd: unexpected row status byte %d", b[0]))
	}
	return int(d), nil
}

// readRow reads one row off the wire: an optional status+VK_LONG row-id
// prefix when the result is updatable, then a status byte per column (0
// null, 1 value follows, 2 per-cell error).
func (r *Result) readRow(names []string) (Row, error) {
	if r.updatable {
		if _, err := r.conn.wire.RecvExact(1); err != nil {
			return Row{}, fmt.Errorf("fourd: read row-id status: %w", err)
		}
		// The row-id always follows its status byte, unconditionally.
		if _, err := codec.Decode(codec.TagLong, r.conn.wire); err != nil {
			return Row{}, fmt.Errorf("fourd: read row-id: %w", err)
		}
	}
	values := make([]any, len(r.columns))
	for i, col := range r.columns {
		status, err := readRowStatus(r.conn.wire)
		if err != nil {
			return Row{}, fmt.Errorf("fourd: read column %s status: %w", col.Name, err)
		}
		switch status {
		case 0:
			values[i] = nil
		case 1:
			v, err := codec.Decode(col.Tag, r.conn.wire)
			if err != nil {
				return Row{}, fmt.Errorf("fourd: decode column %s: %w", col.Name, err)
			}
			values[i] = v
		case 2:
			errCode, err := codec.Decode(codec.TagLong8, r.conn.wire)
			if err != nil {
				return Row{}, fmt.Errorf("fourd: read per-cell error code: %w", err)
			}
			return Row{}, fourderr.Server(int(errCode.(int64)), 0, fmt.Sprintf("per-cell error on column %s", col.Name))
		}
	}
	return newRow(names, values), nil
}

// fetchPage issues FETCH-RESULT for the next window, sized to pageSize and
// clamped so the last row index never exceeds rowCount-1 (spec §4.5).
func (r *Result) fetchPage() error {
	if r.rowsReceived >= r.rowCount {
		return nil
	}
	first := r.rowsReceived
	last := first + r.pageSize - 1
	if last > r.rowCount-1 {
		last = r.rowCount - 1
	}

	cmd := protocol.FetchResult(r.statementID, 0, first, last)
	if err := r.conn.wire.Send(cmd.Bytes()); err != nil {
		return fmt.Errorf("fourd: send fetch-result: %w", err)
	}
	if _, err := protocol.ParseResponse(r.conn.wire); err != nil {
		r.invalid = true
		return err
	}

	names := r.columnNames()
	n := last - first + 1
	for i := 0; i < n; i++ {
		row, err := r.readRow(names)
		if err != nil {
			r.invalid = true
			return err
		}
		r.buf = append(r.buf, row)
		r.rowsReceived++
	}
	return nil
}

// FetchOne returns the next buffered row, refilling from the server if the
// buffer is empty and more rows remain, or (Row{}, false, nil) when
// exhausted.
func (r *Result) FetchOne() (Row, bool, error) {
	if r.invalid {
		return Row{}, false, fourderr.InternalError("fourd: result is invalid after a prior read error")
	}
	if len(r.buf) == 0 {
		if r.rowsReceived >= r.rowCount {
			return Row{}, false, nil
		}
		if err := r.fetchPage(); err != nil {
			return Row{}, false, err
		}
		if len(r.buf) == 0 {
			return Row{}, false, nil
		}
	}
	row := r.buf[0]
	r.buf = r.buf[1:]
	r.rowNumber++
	return row, true, nil
}

// FetchMany returns up to n rows.
func (r *Result) FetchMany(n int) ([]Row, error) {
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		row, ok, err := r.FetchOne()
		if err != nil {
			return rows, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchAll drains all remaining rows.
func (r *Result) FetchAll() ([]Row, error) {
	var rows []Row
	for {
		row, ok, err := r.FetchOne()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// Close sends CLOSE-STATEMENT and consumes its acknowledgement. Safe to
// call with unread rows buffered or still on the server.
func (r *Result) Close() error {
	if r.kind != protocol.KindResultSet || r.statementID == 0 {
		return nil
	}
	cmd := protocol.CloseStatement(r.statementID)
	if err := r.conn.wire.Send(cmd.Bytes()); err != nil {
		return fmt.Errorf("fourd: send close-statement: %w", err)
	}
	_, err := protocol.ParseResponse(r.conn.wire)
	return err
}
