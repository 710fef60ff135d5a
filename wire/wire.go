// Package wire implements the framed byte-stream transport underneath the
// 4D wire protocol: exact-length reads, header-until-CRLFCRLF reads, and
// whole-command writes over a single TCP socket.
//
// Read/write patterns here are grounded on proxy/mysql/conn.go's
// readPacket/writePacket and proxy/postgres/conn.go's readMessageRaw in the
// sql-tap proxy: a small header is read first to learn a length or a
// terminator, then the rest is read with io.ReadFull so client and server
// never drift out of sync mid-frame.
package wire

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"
)

// connectTimeout is the fixed TCP connect timeout mandated by the protocol
// (spec §4.1): there is no per-call override, matching the original
// driver's single hardcoded socket.create_connection(..., 15) call.
const connectTimeout = 15 * time.Second

// headerTerminator marks the end of a response (or ack) header block.
var headerTerminator = []byte("\r\n\r\n")

// Conn is a framed connection to a 4D server. It owns exactly one
// net.Conn; callers serialize their own access per spec §5 (no internal
// locking — requests and responses on one Conn are strictly FIFO by
// construction of the protocol, not by synchronization here).
type Conn struct {
	nc net.Conn
}

// Dial opens a TCP connection to addr, bounded by the protocol's fixed
// 15-second connect timeout.
func Dial(network, addr string) (*Conn, error) {
	nc, err := net.DialTimeout(network, addr, connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s: %w", addr, err)
	}
	return &Conn{nc: nc}, nil
}

// Close closes the underlying socket unconditionally.
func (c *Conn) Close() error {
	if c.nc == nil {
		return nil
	}
	err := c.nc.Close()
	c.nc = nil
	return err
}

// Send writes b to the socket in full. A short write never occurs on a
// blocking net.Conn.Write, but the command still has to make it out before
// the caller can expect a response, so the failure path is identical to a
// broken pipe.
func (c *Conn) Send(b []byte) error {
	if c.nc == nil {
		return fmt.Errorf("wire: send on closed connection")
	}
	if _, err := c.nc.Write(b); err != nil {
		return fmt.Errorf("wire: send: %w", err)
	}
	return nil
}

// RecvExact reads exactly n bytes or fails; used for every binary value and
// every fixed-size row-status byte.
func (c *Conn) RecvExact(n int) ([]byte, error) {
	if c.nc == nil {
		return nil, fmt.Errorf("wire: recv on closed connection")
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(c.nc, buf); err != nil {
		return nil, fmt.Errorf("wire: recv %d bytes: %w", n, err)
	}
	return buf, nil
}

// RecvHeader reads bytes one at a time until the CRLFCRLF terminator is
// seen, returning the bytes read including the terminator. Reading one
// byte at a time avoids over-reading into a binary payload that may
// immediately follow the header block (spec §4.1).
func (c *Conn) RecvHeader() ([]byte, error) {
	if c.nc == nil {
		return nil, fmt.Errorf("wire: recv on closed connection")
	}
	var buf bytes.Buffer
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(c.nc, one); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("wire: header terminator not found: %w", io.ErrUnexpectedEOF)
			}
			return nil, fmt.Errorf("wire: recv header: %w", err)
		}
		buf.WriteByte(one[0])
		if buf.Len() >= len(headerTerminator) && bytes.HasSuffix(buf.Bytes(), headerTerminator) {
			return buf.Bytes(), nil
		}
	}
}
