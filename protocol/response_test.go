package protocol_test

import (
	"encoding/binary"
	"errors"
	"net"
	"testing"

	"github.com/mbertoldi/go-fourd/codec"
	"github.com/mbertoldi/go-fourd/fourderr"
	"github.com/mbertoldi/go-fourd/protocol"
	"github.com/mbertoldi/go-fourd/wire"
)

// serverWriting starts a loopback listener, writes raw on the first
// accepted connection, and returns a wire.Conn dialed to it.
func serverWriting(t *testing.T, raw []byte) *wire.Conn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = lis.Close() })

	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_, _ = conn.Write(raw)
	}()

	c, err := wire.Dial("tcp", lis.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestParseResponseOK(t *testing.T) {
	t.Parallel()

	c := serverWriting(t, []byte("003 OK\r\n\r\n"))
	resp, err := protocol.ParseResponse(c)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Kind != protocol.KindOK {
		t.Errorf("Kind = %v, want KindOK", resp.Kind)
	}
}

func TestParseResponseResultSet(t *testing.T) {
	t.Parallel()

	raw := "003 OK\r\n" +
		"Result-Type: Result-Set\r\n" +
		"Statement-ID: 17\r\n" +
		"Column-Aliases: [id] [name]\r\n" +
		"Column-Types: VK_LONG8 VK_STRING\r\n" +
		"Column-Updateability: Y N\r\n" +
		"Row-Count: 2\r\n" +
		"Row-Count-Sent: 2\r\n" +
		"\r\n"

	c := serverWriting(t, []byte(raw))
	resp, err := protocol.ParseResponse(c)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Kind != protocol.KindResultSet {
		t.Fatalf("Kind = %v, want KindResultSet", resp.Kind)
	}
	if resp.StatementID != 17 {
		t.Errorf("StatementID = %d, want 17", resp.StatementID)
	}
	if resp.RowCount != 2 || resp.RowCountSent != 2 {
		t.Errorf("RowCount=%d RowCountSent=%d, want 2/2", resp.RowCount, resp.RowCountSent)
	}
	if len(resp.Columns) != 2 {
		t.Fatalf("len(Columns) = %d, want 2", len(resp.Columns))
	}
	if resp.Columns[0].Name != "id" || resp.Columns[0].Tag != codec.TagLong8 || !resp.Columns[0].Updatable {
		t.Errorf("column 0 = %+v", resp.Columns[0])
	}
	if resp.Columns[1].Name != "name" || resp.Columns[1].Tag != codec.TagString || resp.Columns[1].Updatable {
		t.Errorf("column 1 = %+v", resp.Columns[1])
	}
	if !resp.Updatable {
		t.Error("expected Updatable true: at least one column is updatable")
	}
}

func TestParseResponseUpdateCount(t *testing.T) {
	t.Parallel()

	var payload []byte
	payload = append(payload, 0x00) // discarded status byte
	count := make([]byte, 8)
	binary.LittleEndian.PutUint64(count, 5)
	payload = append(payload, count...)

	raw := append([]byte("003 OK\r\nResult-Type: Update-Count\r\n\r\n"), payload...)
	c := serverWriting(t, raw)
	resp, err := protocol.ParseResponse(c)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Kind != protocol.KindUpdateCount {
		t.Fatalf("Kind = %v, want KindUpdateCount", resp.Kind)
	}
	if resp.UpdateCount != 5 {
		t.Errorf("UpdateCount = %d, want 5", resp.UpdateCount)
	}
}

func TestParseResponseErrorStatus(t *testing.T) {
	t.Parallel()

	raw := "003 KO\r\n" +
		"Error-Code: 1000\r\n" +
		"Error-Component-Code: 1\r\n" +
		"Error-Description: bad credentials\r\n" +
		"\r\n"
	c := serverWriting(t, []byte(raw))
	_, err := protocol.ParseResponse(c)
	if err == nil {
		t.Fatal("expected error for non-OK status")
	}
	var fe *fourderr.Base
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fourderr.Base, got %T (%v)", err, err)
	}
	if fe.Code != 1000 || fe.Description != "bad credentials" {
		t.Errorf("unexpected error fields: %+v", fe)
	}
}

func TestParseResponseBase64Header(t *testing.T) {
	t.Parallel()

	// "hello" base64-encoded.
	raw := "003 OK\r\n" +
		"Comment-Base64: aGVsbG8=\r\n" +
		"\r\n"
	c := serverWriting(t, []byte(raw))
	resp, err := protocol.ParseResponse(c)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Headers["Comment"] != "hello" {
		t.Errorf("Comment header = %q, want %q", resp.Headers["Comment"], "hello")
	}
}
