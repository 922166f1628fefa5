// Package testutil provides a stub database/sql driver that understands the
// statements issued by the postgres document store.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var driverSeq atomic.Int64

// StubConn records statements and keeps documents in memory.
type StubConn struct {
	mu        sync.Mutex
	Execs     []string
	Docs      map[string]map[string][]byte
	FailPing  bool
	FailExec  bool
	FailQuery bool
	RowsErr   error
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Docs: make(map[string]map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", driverSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("transactions not supported") }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	up := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(up, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(up, "INSERT INTO DOCUMENTS"):
		if len(args) < 3 {
			return nil, fmt.Errorf("insert expects 3 args, got %d", len(args))
		}
		coll, key := asString(args[0].Value), asString(args[1].Value)
		if c.Docs[coll] == nil {
			c.Docs[coll] = make(map[string][]byte)
		}
		c.Docs[coll][key] = []byte(asString(args[2].Value))
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(up, "DELETE FROM DOCUMENTS"):
		if len(args) < 2 {
			return nil, fmt.Errorf("delete expects 2 args, got %d", len(args))
		}
		coll, key := asString(args[0].Value), asString(args[1].Value)
		if _, ok := c.Docs[coll][key]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.Docs[coll], key)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("query expects a collection argument")
	}
	coll := asString(args[0].Value)
	lower := strings.ToLower(query)
	if strings.Contains(lower, "and key") {
		if len(args) < 2 {
			return nil, fmt.Errorf("point query expects 2 args")
		}
		rows := &stubRows{cols: []string{"payload"}, err: c.RowsErr}
		if payload, ok := c.Docs[coll][asString(args[1].Value)]; ok {
			rows.rows = append(rows.rows, []driver.Value{append([]byte(nil), payload...)})
		}
		return rows, nil
	}
	keys := make([]string, 0, len(c.Docs[coll]))
	for k := range c.Docs[coll] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := &stubRows{cols: []string{"key", "payload"}, err: c.RowsErr}
	for _, k := range keys {
		rows.rows = append(rows.rows, []driver.Value{k, append([]byte(nil), c.Docs[coll][k]...)})
	}
	return rows, nil
}

func asString(v driver.Value) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
