package protocol

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/mbertoldi/go-fourd/codec"
	"github.com/mbertoldi/go-fourd/fourderr"
	"github.com/mbertoldi/go-fourd/wire"
)

// ResponseKind classifies a parsed response, the same closed-set shape the
// teacher's responseState enum uses to drive proxy/mysql/conn.go's capture
// state machine (stateFirstResp, stateColumnDefs, stateRowData, …).
type ResponseKind int

const (
	KindOK ResponseKind = iota
	KindError
	KindResultSet
	KindUpdateCount
)

func (k ResponseKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindError:
		return "error"
	case KindResultSet:
		return "result-set"
	case KindUpdateCount:
		return "update-count"
	default:
		return "unknown"
	}
}

// Response is a parsed header block plus whatever eager fields its Kind
// implies (spec §4.4).
type Response struct {
	StatementCode string
	StatusCode    string
	Headers       map[string]string
	Kind          ResponseKind

	// KindResultSet fields.
	StatementID  int64
	Columns      []codec.Column
	RowCount     int
	RowCountSent int
	Updatable    bool

	// KindUpdateCount fields.
	UpdateCount int64
}

// ParseResponse reads one header block off c and classifies it per spec
// §4.4. For KindUpdateCount it also consumes the leading status byte and
// the VK_LONG8 affected count. For KindResultSet it leaves the row bytes
// on the wire for the Result Cursor to drain. A non-OK status code is
// returned as a *fourderr.Base error built from Error-Code,
// Error-Component-Code and Error-Description, never as a successful
// *Response.
func ParseResponse(c *wire.Conn) (*Response, error) {
	raw, err := c.RecvHeader()
	if err != nil {
		return nil, fmt.Errorf("protocol: read response header: %w", err)
	}
	resp, err := parseHeaderBlock(raw)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != "OK" && resp.StatusCode != "0" {
		return nil, buildServerError(resp)
	}

	switch resp.Headers["Result-Type"] {
	case "Result-Set":
		resp.Kind = KindResultSet
		if err := populateResultSet(resp); err != nil {
			return nil, err
		}
	case "Update-Count":
		resp.Kind = KindUpdateCount
		if err := consumeUpdateCount(c, resp); err != nil {
			return nil, err
		}
	default:
		resp.Kind = KindOK
	}
	return resp, nil
}

// parseHeaderBlock normalizes CRLF to LF, splits the first status line from
// the Name: value lines, and base64-decodes any header whose wire name ends
// in "-Base64", reporting it under the name with that suffix stripped.
func parseHeaderBlock(raw []byte) (*Response, error) {
	normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	scanner := bufio.NewScanner(bytes.NewReader(normalized))
	if !scanner.Scan() {
		return nil, fourderr.InternalError("protocol: empty response header")
	}
	statusLine := strings.Fields(scanner.Text())
	if len(statusLine) < 2 {
		return nil, fourderr.InternalError(fmt.Sprintf("protocol: malformed status line %q", scanner.Text()))
	}
	resp := &Response{
		StatementCode: statusLine[0],
		StatusCode:    statusLine[1],
		Headers:       make(map[string]string),
	}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if strings.HasSuffix(name, "-Base64") {
			name = strings.TrimSuffix(name, "-Base64")
			decoded, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				return nil, fourderr.Wrap(fourderr.KindInternalError, fmt.Sprintf("protocol: decode %s", name), err)
			}
			value = string(decoded)
		}
		resp.Headers[name] = value
	}
	return resp, nil
}

func buildServerError(resp *Response) error {
	code, _ := strconv.Atoi(resp.Headers["Error-Code"])
	componentCode, _ := strconv.Atoi(resp.Headers["Error-Component-Code"])
	description := resp.Headers["Error-Description"]
	return fourderr.Server(code, componentCode, description)
}

// populateResultSet fills in the Result-Set header fields: Statement-ID,
// Column-Aliases (bracketed "[n1] [n2]"), Column-Types (space-separated tag
// names), Column-Updateability (space-separated Y/N), Row-Count,
// Row-Count-Sent. Column-Count is not read; the number of columns is the
// number of Column-Aliases entries.
func populateResultSet(resp *Response) error {
	var err error
	resp.StatementID, err = strconv.ParseInt(resp.Headers["Statement-ID"], 10, 64)
	if err != nil {
		return fourderr.Wrap(fourderr.KindInternalError, "protocol: parse Statement-ID", err)
	}

	names := parseBracketedAliases(resp.Headers["Column-Aliases"])
	types := strings.Fields(resp.Headers["Column-Types"])
	updateFlags := strings.Fields(resp.Headers["Column-Updateability"])
	if len(names) != len(types) {
		return fourderr.InternalError("protocol: Column-Aliases/Column-Types length mismatch")
	}

	columns := make([]codec.Column, len(names))
	for i, name := range names {
		tag, err := codec.ParseTag(types[i])
		if err != nil {
			return err
		}
		updatable := i < len(updateFlags) && updateFlags[i] == "Y"
		if updatable {
			resp.Updatable = true
		}
		columns[i] = codec.Column{
			Name:      name,
			Tag:       tag,
			HostType:  codec.HostType(tag),
			Updatable: updatable,
		}
	}
	resp.Columns = columns

	resp.RowCount, err = strconv.Atoi(resp.Headers["Row-Count"])
	if err != nil {
		return fourderr.Wrap(fourderr.KindInternalError, "protocol: parse Row-Count", err)
	}
	resp.RowCountSent, err = strconv.Atoi(resp.Headers["Row-Count-Sent"])
	if err != nil {
		return fourderr.Wrap(fourderr.KindInternalError, "protocol: parse Row-Count-Sent", err)
	}
	return nil
}

// parseBracketedAliases parses "[n1] [n2] [n3]" into ["n1", "n2", "n3"].
func parseBracketedAliases(s string) []string {
	var names []string
	for _, field := range strings.Fields(s) {
		field = strings.TrimPrefix(field, "[")
		field = strings.TrimSuffix(field, "]")
		names = append(names, field)
	}
	return names
}

// consumeUpdateCount reads the single discarded status byte followed by a
// VK_LONG8 affected-row count (spec §4.4).
func consumeUpdateCount(c *wire.Conn, resp *Response) error {
	if _, err := c.RecvExact(1); err != nil {
		return fmt.Errorf("protocol: read update-count status byte: %w", err)
	}
	v, err := codec.Decode(codec.TagLong8, c)
	if err != nil {
		return fmt.Errorf("protocol: read update-count value: %w", err)
	}
	resp.UpdateCount = v.(int64)
	return nil
}
