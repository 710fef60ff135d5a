package fourd_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mbertoldi/go-fourd/fourd"
	"github.com/mbertoldi/go-fourd/fourderr"
)

// withPlainFraming disables both base64 framing flags for the duration of
// a test, so the hand-written fake server doesn't need a base64 decode
// step to read the STATEMENT/USER-NAME headers it dispatches on. These
// are process-scope flags (spec §6.4), so tests that touch them must not
// run in parallel with each other.
func withPlainFraming(t *testing.T) {
	t.Helper()
	prevLogin, prevStatement := fourd.LoginUseBase64, fourd.StatementUseBase64
	fourd.LoginUseBase64 = false
	fourd.StatementUseBase64 = false
	t.Cleanup(func() {
		fourd.LoginUseBase64 = prevLogin
		fourd.StatementUseBase64 = prevStatement
	})
}

func dial(t *testing.T, addr string) *fourd.Connection {
	t.Helper()
	host, port := splitHostPort(t, addr)
	conn, err := fourd.Connect(context.Background(),
		fourd.WithHost(host), fourd.WithPort(port),
		fourd.WithUser("alice"), fourd.WithPassword("secret"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return conn
}

func TestConnectLoginThenClose(t *testing.T) {
	withPlainFraming(t)

	addr := fakeServer(t, func(cmd *fakeCommand) []byte {
		switch cmd.text {
		case "LOGIN", "LOGOUT", "QUIT":
			return okFrame()
		default:
			t.Fatalf("unexpected command %q", cmd.text)
			return nil
		}
	})

	conn := dial(t, addr)
	if conn.ID() == "" {
		t.Error("expected a non-empty correlation ID")
	}
	if err := conn.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestConnectLoginFailureIsOperationalError covers spec §8 scenario 6: a
// non-OK LOGIN response carrying Error-Code/Error-Description must surface
// from Connect as an OperationalError (not the generic DatabaseError a
// server rejection would otherwise dispatch to), with those fields intact.
func TestConnectLoginFailureIsOperationalError(t *testing.T) {
	withPlainFraming(t)

	addr := fakeServer(t, func(cmd *fakeCommand) []byte {
		if cmd.text == "LOGIN" {
			return []byte("001 KO\r\nError-Code: 1000\r\nError-Description: bad credentials\r\n\r\n")
		}
		t.Fatalf("unexpected command %q", cmd.text)
		return nil
	})

	host, port := splitHostPort(t, addr)
	_, err := fourd.Connect(context.Background(),
		fourd.WithHost(host), fourd.WithPort(port),
		fourd.WithUser("alice"), fourd.WithPassword("wrong"))
	if err == nil {
		t.Fatal("expected Connect to fail on login rejection")
	}

	var fe *fourderr.Base
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fourderr.Base, got %T (%v)", err, err)
	}
	if fe.Kind != fourderr.KindOperationalError {
		t.Errorf("Kind = %v, want OperationalError", fe.Kind)
	}
	if fe.Code != 1000 || fe.Description != "bad credentials" {
		t.Errorf("unexpected error fields: %+v", fe)
	}
}

func TestExecuteUpdateCount(t *testing.T) {
	withPlainFraming(t)

	addr := fakeServer(t, func(cmd *fakeCommand) []byte {
		switch cmd.text {
		case "LOGIN", "LOGOUT", "QUIT", "PREPARE-STATEMENT":
			return okFrame()
		case "EXECUTE-STATEMENT":
			if cmd.headers["STATEMENT"] == "START TRANSACTION;" {
				return updateCountFrame(0)
			}
			return updateCountFrame(1)
		default:
			t.Fatalf("unexpected command %q", cmd.text)
			return nil
		}
	})

	conn := dial(t, addr)
	defer func() { _ = conn.Close(context.Background()) }()

	cur := conn.Cursor()
	if err := cur.Execute(context.Background(), "INSERT INTO t VALUES (1)", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := cur.RowCount(); got != 1 {
		t.Errorf("RowCount = %d, want 1", got)
	}
	if cur.Description() != nil {
		t.Errorf("Description = %v, want nil for an update-count result", cur.Description())
	}
}

func TestExecuteResultSetPagesAcrossFetch(t *testing.T) {
	withPlainFraming(t)

	rows := [][2]any{{int64(1), "ann"}, {int64(2), "bob"}, {int64(3), "cal"}}
	fetchCount := 0

	addr := fakeServer(t, func(cmd *fakeCommand) []byte {
		switch cmd.text {
		case "LOGIN", "LOGOUT", "QUIT", "PREPARE-STATEMENT":
			return okFrame()
		case "EXECUTE-STATEMENT":
			if cmd.headers["STATEMENT"] == "START TRANSACTION;" {
				return updateCountFrame(0)
			}
			resp := resultSetHeader(1, len(rows), 2)
			resp = append(resp, encodeRow(rows[0][0].(int64), rows[0][1].(string))...)
			resp = append(resp, encodeRow(rows[1][0].(int64), rows[1][1].(string))...)
			return resp
		case "FETCH-RESULT":
			fetchCount++
			resp := fetchAckFrame()
			resp = append(resp, encodeRow(rows[2][0].(int64), rows[2][1].(string))...)
			return resp
		case "CLOSE-STATEMENT":
			return okFrame()
		default:
			t.Fatalf("unexpected command %q", cmd.text)
			return nil
		}
	})

	conn := dial(t, addr)
	defer func() { _ = conn.Close(context.Background()) }()

	cur := conn.Cursor()
	if err := cur.Execute(context.Background(), "SELECT id, name FROM people", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := cur.RowCount(); got != 3 {
		t.Errorf("RowCount = %d, want 3", got)
	}
	if len(cur.Description()) != 2 {
		t.Fatalf("Description = %v, want 2 columns", cur.Description())
	}

	all, err := cur.FetchAll()
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(all))
	}
	for i, want := range rows {
		got, ok := all[i].Get("name")
		if !ok || got != want[1] {
			t.Errorf("row %d name = %v, want %v", i, got, want[1])
		}
		if all[i].At(0) != want[0] {
			t.Errorf("row %d id = %v, want %v", i, all[i].At(0), want[0])
		}
	}
	if fetchCount != 1 {
		t.Errorf("expected exactly one FETCH-RESULT call, got %d", fetchCount)
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("cursor Close: %v", err)
	}
}

// TestExecuteUpdatableResultSetReadsRowIDPrefix exercises the row-id
// prefix readRow reads ahead of every row's column statuses when the
// result reports any column updatable (spec §4.5) — previously untested.
func TestExecuteUpdatableResultSetReadsRowIDPrefix(t *testing.T) {
	withPlainFraming(t)

	addr := fakeServer(t, func(cmd *fakeCommand) []byte {
		switch cmd.text {
		case "LOGIN", "LOGOUT", "QUIT", "PREPARE-STATEMENT":
			return okFrame()
		case "EXECUTE-STATEMENT":
			if cmd.headers["STATEMENT"] == "START TRANSACTION;" {
				return updateCountFrame(0)
			}
			resp := updatableResultSetHeader(1, 1, 1)
			resp = append(resp, encodeUpdatableRow(100, 1, "ann")...)
			return resp
		case "CLOSE-STATEMENT":
			return okFrame()
		default:
			t.Fatalf("unexpected command %q", cmd.text)
			return nil
		}
	})

	conn := dial(t, addr)
	defer func() { _ = conn.Close(context.Background()) }()

	cur := conn.Cursor()
	if err := cur.Execute(context.Background(), "SELECT id, name FROM people", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	row, ok, err := cur.FetchOne()
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if !ok {
		t.Fatal("expected one row")
	}
	if got, _ := row.Get("name"); got != "ann" {
		t.Errorf("name = %v, want ann", got)
	}
	if row.At(0) != int64(1) {
		t.Errorf("id = %v, want 1", row.At(0))
	}
}

func TestCommitAndRollbackUseHousekeepingCursor(t *testing.T) {
	withPlainFraming(t)

	var seenStatements []string
	addr := fakeServer(t, func(cmd *fakeCommand) []byte {
		switch cmd.text {
		case "LOGIN", "LOGOUT", "QUIT", "PREPARE-STATEMENT":
			return okFrame()
		case "EXECUTE-STATEMENT":
			seenStatements = append(seenStatements, cmd.headers["STATEMENT"])
			return updateCountFrame(0)
		default:
			t.Fatalf("unexpected command %q", cmd.text)
			return nil
		}
	})

	conn := dial(t, addr)
	defer func() { _ = conn.Close(context.Background()) }()

	cur := conn.Cursor()
	if err := cur.Execute(context.Background(), "UPDATE t SET x = 1", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := conn.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := cur.Execute(context.Background(), "UPDATE t SET x = 2", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := conn.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	want := []string{"START TRANSACTION;", "UPDATE t SET x = 1", "COMMIT;", "START TRANSACTION;", "UPDATE t SET x = 2", "ROLLBACK;"}
	if len(seenStatements) != len(want) {
		t.Fatalf("seenStatements = %v, want %v", seenStatements, want)
	}
	for i := range want {
		if seenStatements[i] != want[i] {
			t.Errorf("statement %d = %q, want %q", i, seenStatements[i], want[i])
		}
	}
}
