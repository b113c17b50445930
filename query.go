package mysql

import (
	"go.uber.org/zap"
)

// https://dev.mysql.com/doc/internals/en/com-query-response.html

// Query sends a textual statement and returns its result as a row
// stream. Statements without a result set (INSERT, SET, ...) return a
// Rows that is already exhausted; the affected-rows count and
// last-insert-id are available on the connection.
func (c *Conn) Query(sql string) (*Rows, error) {
	if err := c.beginCommand(); err != nil {
		return nil, err
	}
	c.log.Debug("query", zap.String("sql", sql))
	if err := c.write(comPacket{cmd: comQuery, arg: sql}); err != nil {
		return nil, c.fatal(err)
	}
	rows, err := c.readQueryResponse(false)
	return rows, c.commandErr(err)
}

// readQueryResponse dispatches on the first response packet of
// COM_QUERY or COM_STMT_EXECUTE.
func (c *Conn) readQueryResponse(binary bool) (*Rows, error) {
	r := newReader(c.conn, &c.seq)
	marker, err := r.peek()
	if err != nil {
		return nil, err
	}
	switch marker {
	case okMarker:
		ok := okPacket{}
		if err := ok.decode(r, c.caps); err != nil {
			return nil, err
		}
		c.applyOK(&ok)
		rows := &Rows{c: c, binary: binary, done: true, ok: ok}
		if ok.statusFlags&StatusMoreResultsExist != 0 {
			rows.more = true
			rows.r = r
			c.rows = rows
		} else {
			c.seq = 0
		}
		return rows, nil
	case errMarker:
		ep := errPacket{}
		if err := ep.decode(r, c.caps); err != nil {
			return nil, err
		}
		return nil, ep.serverError()
	case localInfileMarker:
		// LOCAL INFILE requests are terminated with an empty payload;
		// this library never reads client-side files.
		r.int1()
		filename := r.stringEOF()
		if r.err != nil {
			return nil, r.err
		}
		c.log.Debug("refusing local infile request", zap.String("file", filename))
		if err := newWriter(c.conn, &c.seq).Close(); err != nil {
			return nil, err
		}
		ok, err := c.readOKErr()
		if err != nil {
			return nil, err
		}
		c.seq = 0
		return &Rows{c: c, binary: binary, done: true, ok: *ok}, nil
	default:
		rows := &Rows{c: c, binary: binary, r: r}
		if err := rows.readResultSetHeader(); err != nil {
			return nil, err
		}
		c.rows = rows
		return rows, nil
	}
}

// readResultSetHeader consumes the column-count packet and the column
// definitions (plus the legacy EOF separator when DEPRECATE_EOF was
// not negotiated).
func (rs *Rows) readResultSetHeader() error {
	r := rs.r
	ncol := r.intN()
	if r.err != nil {
		return r.err
	}
	if r.more() {
		return ErrMalformedPacket
	}
	rs.cols = rs.cols[:0]
	for i := uint64(0); i < ncol; i++ {
		r.reset()
		cd := columnDef{}
		if err := cd.decode(r, rs.c.caps); err != nil {
			return err
		}
		if r.more() {
			return ErrMalformedPacket
		}
		rs.cols = append(rs.cols, cd)
	}
	if rs.c.caps&capDeprecateEOF == 0 {
		r.reset()
		eof := eofPacket{}
		if err := eof.decode(r, rs.c.caps); err != nil {
			return err
		}
	}
	return nil
}
