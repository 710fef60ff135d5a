// Package fourd is the public facade for the 4D driver: a standard
// database-API shape (Connect/Open, Cursor, Commit/Rollback/Close,
// Execute/Fetch) layered over the wire, codec, protocol and rewrite
// packages (spec §6.2).
package fourd

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/mbertoldi/go-fourd/fourderr"
	"github.com/mbertoldi/go-fourd/protocol"
	"github.com/mbertoldi/go-fourd/wire"
)

// Connection is a session to one 4D server (spec §3, §4.7). It owns
// exactly one TCP socket; callers serialize their own access (spec §5) —
// concurrent use of a Connection or any of its Cursors from more than one
// goroutine is undefined, the same documented-not-enforced note the
// teacher's sysdb.Conn carries for its own single-socket client.
type Connection struct {
	id   string
	wire *wire.Conn
	log  *log.Logger

	host, user, password, database string
	arraySize, pageSize            int
	imageType                      string

	connected     bool
	inTransaction bool
	housekeeping  *Cursor
}

// ID returns this Connection's correlation ID, surfaced in the teardown
// log lines Close writes; error messages do not include it — grounded on the teacher's
// uuid.New().String() transaction correlation IDs in
// proxy/mysql/conn.go's detectTx.
func (c *Connection) ID() string { return c.id }

// Connect opens a new Connection using only functional Options (no DSN).
func Connect(ctx context.Context, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return connect(ctx, o)
}

// Open parses dsn (spec §6.3) and opens a new Connection, with any
// explicit Option overriding the corresponding DSN value.
func Open(ctx context.Context, dsn string, opts ...Option) (*Connection, error) {
	params, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	o := defaultOptions()
	o.host = params.host
	o.port = params.port
	o.user = params.user
	o.password = params.password
	o.database = params.database
	for _, opt := range opts {
		opt(&o)
	}
	return connect(ctx, o)
}

func connect(ctx context.Context, o options) (*Connection, error) {
	addr := fmt.Sprintf("%s:%d", o.host, o.port)
	wc, err := wire.Dial("tcp", addr)
	if err != nil {
		return nil, fourderr.WrapOperational("fourd: connect", err)
	}

	c := &Connection{
		id:        uuid.New().String(),
		wire:      wc,
		log:       o.logger,
		host:      o.host,
		user:      o.user,
		password:  o.password,
		database:  o.database,
		arraySize: o.arraySize,
		pageSize:  o.pageSize,
		imageType: o.imageType,
	}

	if err := c.login(); err != nil {
		_ = wc.Close()
		return nil, err
	}
	c.connected = true
	c.housekeeping = c.Cursor()
	return c, nil
}

// login sends LOGIN and requires an OK response. A non-OK response (bad
// credentials, server unreachable, …) always surfaces as an
// OperationalError — spec §8 scenario 6 — even though ParseResponse would
// otherwise classify a server rejection as the more generic DatabaseError.
func (c *Connection) login() error {
	cmd := protocol.Login(c.user, c.password, true, c.imageType, LoginUseBase64)
	if err := c.wire.Send(cmd.Bytes()); err != nil {
		return fourderr.WrapOperational("fourd: send login", err)
	}
	if _, err := protocol.ParseResponse(c.wire); err != nil {
		return fourderr.AsOperational("fourd: login", err)
	}
	return nil
}

// Cursor returns a new application-facing handle bound to this
// Connection (spec §3).
func (c *Connection) Cursor() *Cursor {
	return &Cursor{
		conn:      c,
		arraySize: c.arraySize,
		pageSize:  c.pageSize,
	}
}

// startTransaction implicitly emits START TRANSACTION via the housekeeping
// cursor before the first statement on a connection (spec §4.7).
func (c *Connection) startTransaction(ctx context.Context) error {
	if c.inTransaction {
		return nil
	}
	c.inTransaction = true
	return c.housekeeping.Execute(ctx, "START TRANSACTION;", nil)
}

// Commit emits COMMIT via the housekeeping cursor and clears the
// in-transaction flag.
func (c *Connection) Commit(ctx context.Context) error {
	if !c.inTransaction {
		return nil
	}
	err := c.housekeeping.Execute(ctx, "COMMIT;", nil)
	c.inTransaction = false
	return err
}

// Rollback emits ROLLBACK via the housekeeping cursor and clears the
// in-transaction flag.
func (c *Connection) Rollback(ctx context.Context) error {
	if !c.inTransaction {
		return nil
	}
	err := c.housekeeping.Execute(ctx, "ROLLBACK;", nil)
	c.inTransaction = false
	return err
}

// Close rolls back an open transaction, sends LOGOUT and QUIT best-effort
// (secondary I/O errors are logged, not returned), then closes the socket
// unconditionally (spec §4.7, §5).
func (c *Connection) Close(ctx context.Context) error {
	if !c.connected {
		return nil
	}
	if c.inTransaction {
		if err := c.Rollback(ctx); err != nil {
			c.log.Printf("fourd[%s]: rollback on close failed: %v", c.id, err)
		}
	}
	if err := c.wire.Send(protocol.Logout().Bytes()); err != nil {
		c.log.Printf("fourd[%s]: send logout failed: %v", c.id, err)
	} else if _, err := protocol.ParseResponse(c.wire); err != nil {
		c.log.Printf("fourd[%s]: logout response failed: %v", c.id, err)
	}
	if err := c.wire.Send(protocol.Quit().Bytes()); err != nil {
		c.log.Printf("fourd[%s]: send quit failed: %v", c.id, err)
	} else if _, err := protocol.ParseResponse(c.wire); err != nil {
		c.log.Printf("fourd[%s]: quit response failed: %v", c.id, err)
	}
	c.connected = false
	return c.wire.Close()
}
