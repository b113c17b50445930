package mysql

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// https://dev.mysql.com/doc/internals/en/prepared-statements.html

// ErrStmtClosed is returned by operations on a closed statement.
var ErrStmtClosed = errors.New("mysql: statement is closed")

// Stmt is a server-side prepared statement. It is valid only on the
// connection that prepared it, from the COM_STMT_PREPARE response
// until Close or until the connection closes.
type Stmt struct {
	c         *Conn
	id        uint32
	numParams uint16
	numCols   uint16
	params    []columnDef
	cols      []columnDef
	warnings  uint16
	longData  bool // long data has been streamed since the last execute
	closed    bool
}

// Prepare sends COM_STMT_PREPARE and returns the statement handle.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	if err := c.beginCommand(); err != nil {
		return nil, err
	}
	c.log.Debug("prepare", zap.String("sql", sql))
	if err := c.write(comPacket{cmd: comStmtPrepare, arg: sql}); err != nil {
		return nil, c.fatal(err)
	}
	s, err := c.readPrepareResponse()
	if err != nil {
		return nil, c.commandErr(err)
	}
	c.stmts[s.id] = s
	c.seq = 0
	return s, nil
}

func (c *Conn) readPrepareResponse() (*Stmt, error) {
	r := newReader(c.conn, &c.seq)
	marker, err := r.peek()
	if err != nil {
		return nil, err
	}
	if marker == errMarker {
		ep := errPacket{}
		if err := ep.decode(r, c.caps); err != nil {
			return nil, err
		}
		return nil, ep.serverError()
	}
	if header := r.int1(); r.err != nil {
		return nil, r.err
	} else if header != 0x00 {
		return nil, protocolErrf("prepare response: got header 0x%02x", header)
	}
	s := &Stmt{c: c}
	s.id = r.int4()
	s.numCols = r.int2()
	s.numParams = r.int2()
	r.skip(1) // reserved
	s.warnings = r.int2()
	if r.err != nil {
		return nil, r.err
	}
	if s.numParams > 0 {
		for i := uint16(0); i < s.numParams; i++ {
			r.reset()
			cd := columnDef{}
			if err := cd.decode(r, c.caps); err != nil {
				return nil, err
			}
			s.params = append(s.params, cd)
		}
		if c.caps&capDeprecateEOF == 0 {
			r.reset()
			eof := eofPacket{}
			if err := eof.decode(r, c.caps); err != nil {
				return nil, err
			}
		}
	}
	if s.numCols > 0 {
		for i := uint16(0); i < s.numCols; i++ {
			r.reset()
			cd := columnDef{}
			if err := cd.decode(r, c.caps); err != nil {
				return nil, err
			}
			s.cols = append(s.cols, cd)
		}
		if c.caps&capDeprecateEOF == 0 {
			r.reset()
			eof := eofPacket{}
			if err := eof.decode(r, c.caps); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// NumParams reports the number of parameter placeholders.
func (s *Stmt) NumParams() int { return int(s.numParams) }

// NumColumns reports the number of result columns.
func (s *Stmt) NumColumns() int { return int(s.numCols) }

// Warnings reports the warning count of the prepare response.
func (s *Stmt) Warnings() uint16 { return s.warnings }

// paramType maps a Go value to the 2-byte wire type of a
// COM_STMT_EXECUTE parameter. Unsigned integers carry the 0x8000 bit.
func paramType(v interface{}) (uint16, error) {
	switch v.(type) {
	case nil, Null:
		return MYSQL_TYPE_NULL, nil
	case bool, int8:
		return MYSQL_TYPE_TINY, nil
	case uint8:
		return MYSQL_TYPE_TINY | paramUnsigned, nil
	case int16:
		return MYSQL_TYPE_SHORT, nil
	case uint16:
		return MYSQL_TYPE_SHORT | paramUnsigned, nil
	case int32:
		return MYSQL_TYPE_LONG, nil
	case uint32:
		return MYSQL_TYPE_LONG | paramUnsigned, nil
	case int, int64:
		return MYSQL_TYPE_LONGLONG, nil
	case uint, uint64:
		return MYSQL_TYPE_LONGLONG | paramUnsigned, nil
	case float32:
		return MYSQL_TYPE_FLOAT, nil
	case float64:
		return MYSQL_TYPE_DOUBLE, nil
	case Decimal:
		return MYSQL_TYPE_NEWDECIMAL, nil
	case string, []byte:
		return MYSQL_TYPE_STRING, nil
	case time.Time:
		return MYSQL_TYPE_DATETIME, nil
	case time.Duration:
		return MYSQL_TYPE_TIME, nil
	}
	return 0, &ConfigError{msg: fmt.Sprintf("unsupported parameter type %T", v)}
}

type comExecute struct {
	stmt *Stmt
	args []interface{}
}

func (e comExecute) encode(w *writer) error {
	w.int1(comStmtExecute)
	w.int4(e.stmt.id)
	w.int1(0) // CURSOR_TYPE_NO_CURSOR
	w.int4(1) // iteration count
	if len(e.args) == 0 {
		return w.err
	}
	nullMask := make([]byte, (len(e.args)+7)>>3)
	types := make([]uint16, len(e.args))
	for i, v := range e.args {
		t, err := paramType(v)
		if err != nil {
			return err
		}
		types[i] = t
		if t&0xff == MYSQL_TYPE_NULL {
			nullMask[i>>3] |= 1 << (uint(i) & 7)
		}
	}
	w.Write(nullMask)
	w.int1(1) // new params bound
	for _, t := range types {
		w.int2(t)
	}
	for i, v := range e.args {
		if types[i]&0xff == MYSQL_TYPE_NULL {
			continue
		}
		if err := encodeBinaryValue(w, uint8(types[i]&0xff), v); err != nil {
			return err
		}
	}
	return w.err
}

// Execute runs the prepared statement with the given parameter
// values and returns the (binary) row stream.
func (s *Stmt) Execute(args ...interface{}) (*Rows, error) {
	if s.closed {
		return nil, ErrStmtClosed
	}
	if len(args) != int(s.numParams) {
		return nil, &ConfigError{msg: fmt.Sprintf("statement wants %d parameters, got %d", s.numParams, len(args))}
	}
	for _, v := range args {
		if _, err := paramType(v); err != nil {
			return nil, err
		}
	}
	c := s.c
	if err := c.beginCommand(); err != nil {
		return nil, err
	}
	c.log.Debug("execute", zap.Uint32("stmt", s.id), zap.Int("params", len(args)))
	if err := c.write(comExecute{stmt: s, args: args}); err != nil {
		return nil, c.fatal(err)
	}
	s.longData = false
	rows, err := c.readQueryResponse(true)
	return rows, c.commandErr(err)
}

type comStmtLongData struct {
	stmtID uint32
	param  uint16
	data   []byte
}

func (e comStmtLongData) encode(w *writer) error {
	w.int1(comStmtSendLongData)
	w.int4(e.stmtID)
	w.int2(e.param)
	w.Write(e.data)
	return w.err
}

// SendLongData streams (part of) a parameter value ahead of Execute.
// It may be called repeatedly for the same parameter; the server
// concatenates. There is no response packet.
func (s *Stmt) SendLongData(param int, data []byte) error {
	if s.closed {
		return ErrStmtClosed
	}
	c := s.c
	if err := c.beginCommand(); err != nil {
		return err
	}
	if err := c.write(comStmtLongData{stmtID: s.id, param: uint16(param), data: data}); err != nil {
		return c.fatal(err)
	}
	s.longData = true
	c.seq = 0
	return nil
}

type comStmtID struct {
	cmd    byte
	stmtID uint32
}

func (e comStmtID) encode(w *writer) error {
	w.int1(e.cmd)
	w.int4(e.stmtID)
	return w.err
}

// Reset discards long data accumulated on the server for this
// statement.
func (s *Stmt) Reset() error {
	if s.closed {
		return ErrStmtClosed
	}
	c := s.c
	if err := c.beginCommand(); err != nil {
		return err
	}
	if err := c.write(comStmtID{cmd: comStmtReset, stmtID: s.id}); err != nil {
		return c.fatal(err)
	}
	_, err := c.readOKErr()
	if err == nil {
		s.longData = false
		c.seq = 0
	}
	return c.commandErr(err)
}

// Close sends COM_STMT_CLOSE and invalidates the handle. The server
// does not respond.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	c := s.c
	if err := c.beginCommand(); err != nil {
		return err
	}
	if err := c.write(comStmtID{cmd: comStmtClose, stmtID: s.id}); err != nil {
		return c.fatal(err)
	}
	s.closed = true
	delete(c.stmts, s.id)
	c.seq = 0
	return nil
}
