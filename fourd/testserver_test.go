package fourd_test

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"net"
	"strconv"
	"strings"
	"testing"
	"unicode/utf16"
)

// fakeCommand is one parsed inbound frame: the 3-digit id, the command
// text, and its headers. There is no public 4D test server to run against
// (it's a proprietary product), so these tests drive a hand-written
// in-process server over a real net.Listener instead, the same
// real-listener-over-loopback shape proxy_test.go uses against a real
// MySQL container.
type fakeCommand struct {
	id      string
	text    string
	headers map[string]string
}

// readFakeCommand reads one frame (status line + headers, terminated by a
// blank line) off r. It does not attempt to read a binary payload; every
// command these tests send binds no parameters, so none is ever sent.
func readFakeCommand(r *bufio.Reader) (*fakeCommand, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 2)
	cmd := &fakeCommand{id: parts[0], headers: map[string]string{}}
	if len(parts) > 1 {
		cmd.text = parts[1]
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ": ")
		if ok {
			cmd.headers[name] = value
		}
	}
	return cmd, nil
}

// fakeServer runs handler once per received command and writes whatever
// bytes it returns back to the client, until the connection closes.
func fakeServer(t *testing.T, handler func(cmd *fakeCommand) []byte) string {
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
		r := bufio.NewReader(conn)
		for {
			cmd, err := readFakeCommand(r)
			if err != nil {
				return
			}
			resp := handler(cmd)
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}()

	return lis.Addr().String()
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func okFrame() []byte { return []byte("003 OK\r\n\r\n") }

func updateCountFrame(n int64) []byte {
	var buf bytes.Buffer
	buf.WriteString("003 OK\r\nResult-Type: Update-Count\r\n\r\n")
	buf.WriteByte(0x00)
	count := make([]byte, 8)
	binary.LittleEndian.PutUint64(count, uint64(n))
	buf.Write(count)
	return buf.Bytes()
}

// resultSetHeader builds a Result-Set response header for two VK_LONG8 /
// VK_STRING columns named "id"/"name", with the given totals.
func resultSetHeader(statementID int64, rowCount, rowCountSent int) []byte {
	var buf bytes.Buffer
	buf.WriteString("003 OK\r\n")
	buf.WriteString("Result-Type: Result-Set\r\n")
	buf.WriteString("Statement-ID: " + strconv.FormatInt(statementID, 10) + "\r\n")
	buf.WriteString("Column-Aliases: [id] [name]\r\n")
	buf.WriteString("Column-Types: VK_LONG8 VK_STRING\r\n")
	buf.WriteString("Column-Updateability: N N\r\n")
	buf.WriteString("Row-Count: " + strconv.Itoa(rowCount) + "\r\n")
	buf.WriteString("Row-Count-Sent: " + strconv.Itoa(rowCountSent) + "\r\n")
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// encodeRow renders one (id, name) row in the wire layout: a status byte
// + VK_LONG8 for id, a status byte + VK_STRING for name. Row status bytes
// are the ASCII digit '1' (0x31), the actual wire form the server sends —
// not a raw 0x01 — matching the outbound presence byte BindParams writes
// in protocol/command.go.
func encodeRow(id int64, name string) []byte {
	var buf bytes.Buffer
	buf.WriteByte('1')
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, uint64(id))
	buf.Write(idBytes)

	buf.WriteByte('1')
	units := utf16.Encode([]rune(name))
	lenBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBytes, uint32(int32(-len(units))))
	buf.Write(lenBytes)
	for _, u := range units {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, u)
		buf.Write(b)
	}
	return buf.Bytes()
}

func fetchAckFrame() []byte { return []byte("123 OK\r\n\r\n") }

// updatableResultSetHeader is resultSetHeader with Column-Updateability
// reporting column 0 as updatable, exercising the row-id prefix readRow
// reads before each row's column statuses when any column is updatable.
func updatableResultSetHeader(statementID int64, rowCount, rowCountSent int) []byte {
	var buf bytes.Buffer
	buf.WriteString("003 OK\r\n")
	buf.WriteString("Result-Type: Result-Set\r\n")
	buf.WriteString("Statement-ID: " + strconv.FormatInt(statementID, 10) + "\r\n")
	buf.WriteString("Column-Aliases: [id] [name]\r\n")
	buf.WriteString("Column-Types: VK_LONG8 VK_STRING\r\n")
	buf.WriteString("Column-Updateability: Y N\r\n")
	buf.WriteString("Row-Count: " + strconv.Itoa(rowCount) + "\r\n")
	buf.WriteString("Row-Count-Sent: " + strconv.Itoa(rowCountSent) + "\r\n")
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// encodeUpdatableRow renders one (id, name) row prefixed by the row-id
// status byte + VK_LONG row-id spec §4.5 adds whenever the result is
// updatable, ahead of the usual per-column status+value pairs.
func encodeUpdatableRow(rowID int64, id int64, name string) []byte {
	var buf bytes.Buffer
	buf.WriteByte('1')
	rowIDBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(rowIDBytes, uint32(int32(rowID)))
	buf.Write(rowIDBytes)
	buf.Write(encodeRow(id, name))
	return buf.Bytes()
}
