// Package protocol builds outbound command frames and parses inbound
// response headers for the 4D wire protocol (spec §4.3, §4.4).
//
// Frame shape (status line, header params, optional suffix, blank line,
// optional binary payload) is grounded on the SysDB front-end protocol in
// _examples/sysdb-go/proto/proto.go, whose Read/Write functions are the
// same kind of length/terminator framing this package implements for a
// text-headered variant. The per-command header tables below are closed,
// data-driven lists rather than a reflective dispatch, the same shape the
// teacher's proxy/mysql/conn.go uses for its own closed set of MySQL
// command bytes (comQuery, comStmtPrepare, …).
package protocol

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/mbertoldi/go-fourd/codec"
)

// Command IDs (spec §4.3).
const (
	cmdCloseStatement = 0
	cmdLogin          = 1
	cmdStatement      = 3 // shared by PREPARE-STATEMENT and EXECUTE-STATEMENT
	cmdLogout         = 4
	cmdQuit           = 5
	cmdFetchResult    = 123
)

// Header is one outbound "Name: value" line. A Name ending in "-BASE64"
// carries its Value base64-encoded on the wire (spec §4.3); Base64 records
// that intent explicitly rather than relying on a naming convention scan.
type Header struct {
	Name   string
	Value  string
	Base64 bool
}

// Command is a single outbound frame: a status line, zero or more headers,
// an optional suffix line, and an optional binary payload.
type Command struct {
	ID      int
	Text    string
	Headers []Header
	Suffix  string
	Binary  []byte
}

// Bytes renders the command exactly as spec §4.3 describes: a
// zero-padded 3-digit command ID followed by a space and the command
// text, CRLF-terminated header lines (with
// "-BASE64" appended to the wire name when Base64 is set and the value
// base64-encoded), an optional suffix line, a blank line, then the binary
// payload.
func (c *Command) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%03d %s\r\n", c.ID, c.Text)
	for _, h := range c.Headers {
		name := h.Name
		value := h.Value
		if h.Base64 {
			name += "-BASE64"
			value = base64.StdEncoding.EncodeToString([]byte(value))
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
	}
	if c.Suffix != "" {
		buf.WriteString(c.Suffix)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(c.Binary)
	return buf.Bytes()
}

func boolHeader(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}

// Login builds the LOGIN command. useBase64 selects between the
// credential-base64 variant and the plain-text variant (config flag
// login_use_base64, spec §6.4); both append the PROTOCOL-VERSION suffix.
func Login(user, password string, replyWithBase64 bool, preferredImageType string, useBase64 bool) *Command {
	headers := []Header{
		{Name: "USER-NAME", Value: user, Base64: useBase64},
		{Name: "USER-PASSWORD", Value: password, Base64: useBase64},
		{Name: "REPLY-WITH-BASE64-TEXT", Value: boolHeader(replyWithBase64)},
		{Name: "PREFERRED-IMAGE-TYPES", Value: preferredImageType},
	}
	return &Command{
		ID:      cmdLogin,
		Text:    "LOGIN",
		Headers: headers,
		Suffix:  "PROTOCOL-VERSION: 13.0",
	}
}

// Logout builds the LOGOUT command.
func Logout() *Command { return &Command{ID: cmdLogout, Text: "LOGOUT"} }

// Quit builds the QUIT command.
func Quit() *Command { return &Command{ID: cmdQuit, Text: "QUIT"} }

// BindParams builds the PARAMETER-TYPES header value (space-separated tag
// names, positional order) and the binary payload (leading presence byte,
// 0 for null or 1 followed by the encoded value, per parameter) shared by
// PrepareStatement and ExecuteStatement (spec §4.3).
func BindParams(params []codec.BoundParam) (parameterTypes string, binary []byte, err error) {
	if len(params) == 0 {
		return "", nil, nil
	}
	var buf bytes.Buffer
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Tag.String()
		if p.Value == nil {
			buf.WriteByte('0')
			continue
		}
		buf.WriteByte('1')
		enc, encErr := codec.Encode(p.Tag, p.Value)
		if encErr != nil {
			return "", nil, fmt.Errorf("protocol: bind param %d: %w", i, encErr)
		}
		buf.Write(enc)
	}
	return joinSpace(names), buf.Bytes(), nil
}

func joinSpace(ss []string) string {
	var buf bytes.Buffer
	for i, s := range ss {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
	}
	return buf.String()
}

// statementCommand is the shared builder for PREPARE-STATEMENT and
// EXECUTE-STATEMENT, which differ only in cmd-text and in whether
// FIRST-PAGE-SIZE/OUTPUT-MODE/FULL-ERROR-STACK are present (spec §4.3).
func statementCommand(text, statement string, params []codec.BoundParam, useBase64 bool, extra []Header) (*Command, error) {
	parameterTypes, binary, err := BindParams(params)
	if err != nil {
		return nil, err
	}
	headers := []Header{
		{Name: "STATEMENT", Value: statement, Base64: useBase64},
	}
	if parameterTypes != "" {
		headers = append(headers, Header{Name: "PARAMETER-TYPES", Value: parameterTypes})
	}
	headers = append(headers, extra...)
	return &Command{ID: cmdStatement, Text: text, Headers: headers, Binary: binary}, nil
}

// PrepareStatement builds the PREPARE-STATEMENT command.
func PrepareStatement(statement string, params []codec.BoundParam, useBase64 bool) (*Command, error) {
	return statementCommand("PREPARE-STATEMENT", statement, params, useBase64, nil)
}

// ExecuteStatement builds the EXECUTE-STATEMENT command, with
// FIRST-PAGE-SIZE set to the cursor's page size and the fixed
// OUTPUT-MODE/FULL-ERROR-STACK headers (spec §4.7).
func ExecuteStatement(statement string, params []codec.BoundParam, firstPageSize int, useBase64 bool) (*Command, error) {
	extra := []Header{
		{Name: "FIRST-PAGE-SIZE", Value: fmt.Sprintf("%d", firstPageSize)},
		{Name: "OUTPUT-MODE", Value: "Release"},
		{Name: "FULL-ERROR-STACK", Value: "Y"},
	}
	return statementCommand("EXECUTE-STATEMENT", statement, params, useBase64, extra)
}

// FetchResult builds the FETCH-RESULT command for a paged fetch (spec
// §4.5): statement-id, a command index (0 unless otherwise set), the
// inclusive row-index window, OUTPUT-MODE: Release, FULL-ERROR-STACK: Y.
func FetchResult(statementID int64, commandIndex, firstRow, lastRow int) *Command {
	return &Command{
		ID:   cmdFetchResult,
		Text: "FETCH-RESULT",
		Headers: []Header{
			{Name: "STATEMENT-ID", Value: fmt.Sprintf("%d", statementID)},
			{Name: "COMMAND-INDEX", Value: fmt.Sprintf("%d", commandIndex)},
			{Name: "FIRST-ROW-INDEX", Value: fmt.Sprintf("%d", firstRow)},
			{Name: "LAST-ROW-INDEX", Value: fmt.Sprintf("%d", lastRow)},
			{Name: "OUTPUT-MODE", Value: "Release"},
			{Name: "FULL-ERROR-STACK", Value: "Y"},
		},
	}
}

// CloseStatement builds the CLOSE-STATEMENT command.
func CloseStatement(statementID int64) *Command {
	return &Command{
		ID:   cmdCloseStatement,
		Text: "CLOSE-STATEMENT",
		Headers: []Header{
			{Name: "STATEMENT-ID", Value: fmt.Sprintf("%d", statementID)},
		},
	}
}
