package mysql

import (
	"io"
)

// Rows is a lazy, single-pass stream over one result set. It borrows
// the connection exclusively: no other command may be issued until
// the stream is drained or closed. Close drains and discards what is
// left, restoring the connection to idle.
type Rows struct {
	c      *Conn
	r      *reader
	cols   []columnDef
	binary bool
	done   bool
	more   bool // MORE_RESULTS_EXIST was set on the terminator
	ok     okPacket
}

// Columns returns the metadata of the result columns.
func (rs *Rows) Columns() []Column {
	cols := make([]Column, len(rs.cols))
	for i := range rs.cols {
		cols[i] = rs.cols[i].column()
	}
	return cols
}

// Next returns the next row, or io.EOF at the end of the result set.
// A *ServerError ends the stream; a *DecodeError does not, the stream
// may be advanced past the offending row.
func (rs *Rows) Next() ([]interface{}, error) {
	if rs.done {
		return nil, io.EOF
	}
	r := rs.r
	r.reset()
	marker, err := r.peek()
	if err != nil {
		return nil, rs.c.fatal(err)
	}
	if marker == errMarker {
		ep := errPacket{}
		if err := ep.decode(r, rs.c.caps); err != nil {
			return nil, rs.c.fatal(err)
		}
		rs.finish(false)
		return nil, ep.serverError()
	}
	if rs.isTerminator(marker) {
		ok := okPacket{}
		if rs.c.caps&capDeprecateEOF != 0 {
			if err := ok.decode(r, rs.c.caps); err != nil {
				return nil, rs.c.fatal(err)
			}
		} else {
			eof := eofPacket{}
			if err := eof.decode(r, rs.c.caps); err != nil {
				return nil, rs.c.fatal(err)
			}
			ok.statusFlags = eof.statusFlags
			ok.numWarnings = eof.warnings
		}
		rs.ok = ok
		rs.c.applyOK(&ok)
		rs.finish(ok.statusFlags&StatusMoreResultsExist != 0)
		return nil, io.EOF
	}
	var row []interface{}
	if rs.binary {
		row, err = rs.nextBinaryRow()
	} else {
		row, err = rs.nextTextRow()
	}
	if err != nil {
		if _, ok := err.(*DecodeError); ok {
			// skip the rest of the offending row packet
			if derr := r.drain(); derr != nil {
				return nil, rs.c.fatal(derr)
			}
			return nil, err
		}
		return nil, rs.c.fatal(err)
	}
	return row, nil
}

// isTerminator tells whether the packet starting with marker ends the
// result set. Under DEPRECATE_EOF the terminator is an OK-shaped
// packet with header 0xfe; a row packet can only start with 0xfe when
// its first frame is full-size, so frame length disambiguates.
func (rs *Rows) isTerminator(marker byte) bool {
	if marker != eofMarker {
		return false
	}
	first := rs.r.rd.(*packetReader).first
	if rs.c.caps&capDeprecateEOF != 0 {
		return first < maxPacketSize
	}
	return first < 9
}

func (rs *Rows) nextTextRow() ([]interface{}, error) {
	r := rs.r
	row := make([]interface{}, len(rs.cols))
	for i := range row {
		b, err := r.peek()
		if err != nil {
			return nil, err
		}
		if b == 0xfb {
			r.int1()
			row[i] = Null{}
			continue
		}
		raw := r.bytesN()
		if r.err != nil {
			return nil, r.err
		}
		v, err := decodeTextValue(&rs.cols[i], raw)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func (rs *Rows) nextBinaryRow() ([]interface{}, error) {
	r := rs.r
	if header := r.int1(); r.err != nil {
		return nil, r.err
	} else if header != okMarker {
		return nil, protocolErrf("binary row: got header 0x%02x", header)
	}
	// NULL bitmap, offset by 2 bits
	bitmap := r.bytes((len(rs.cols) + 7 + 2) >> 3)
	if r.err != nil {
		return nil, r.err
	}
	row := make([]interface{}, len(rs.cols))
	for i := range row {
		bit := i + 2
		if bitmap[bit>>3]&(1<<(uint(bit)&7)) != 0 {
			row[i] = Null{}
			continue
		}
		v, err := decodeBinaryValue(r, &rs.cols[i])
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// finish detaches the stream from the connection. When more result
// sets follow, the stream stays attached so NextResultSet can read
// them.
func (rs *Rows) finish(more bool) {
	rs.done = true
	rs.more = more
	if !more {
		rs.r = nil
		rs.c.rows = nil
		rs.c.seq = 0
	}
}

// More reports whether another result set follows the current one.
func (rs *Rows) More() bool { return rs.more }

// NextResultSet advances to the next result set of a multi-result
// response. It reports false when there is none.
func (rs *Rows) NextResultSet() (bool, error) {
	if !rs.done {
		// current set must be drained first
		if err := rs.drainRows(); err != nil {
			return false, err
		}
	}
	if !rs.more {
		return false, nil
	}
	r := rs.r
	r.reset()
	marker, err := r.peek()
	if err != nil {
		return false, rs.c.fatal(err)
	}
	switch marker {
	case okMarker:
		ok := okPacket{}
		if err := ok.decode(r, rs.c.caps); err != nil {
			return false, rs.c.fatal(err)
		}
		rs.ok = ok
		rs.c.applyOK(&ok)
		rs.cols = rs.cols[:0]
		rs.finish(ok.statusFlags&StatusMoreResultsExist != 0)
		return true, nil
	case errMarker:
		ep := errPacket{}
		if err := ep.decode(r, rs.c.caps); err != nil {
			return false, rs.c.fatal(err)
		}
		rs.finish(false)
		return false, ep.serverError()
	default:
		rs.done = false
		rs.more = false
		if err := rs.readResultSetHeader(); err != nil {
			return false, rs.c.fatal(err)
		}
		return true, nil
	}
}

func (rs *Rows) drainRows() error {
	for {
		_, err := rs.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if _, recoverable := err.(*DecodeError); recoverable {
				continue
			}
			if _, recoverable := err.(*ServerError); recoverable {
				return nil
			}
			return err
		}
	}
}

// Close drains and discards the remaining rows (and result sets) so
// the connection is idle again.
func (rs *Rows) Close() error {
	for {
		if err := rs.drainRows(); err != nil {
			return err
		}
		if !rs.more {
			return nil
		}
		if _, err := rs.NextResultSet(); err != nil {
			if _, recoverable := err.(*ServerError); recoverable {
				continue
			}
			return err
		}
	}
}

// AffectedRows reports the affected-rows count from the packet that
// terminated this result set.
func (rs *Rows) AffectedRows() uint64 { return rs.ok.affectedRows }

// LastInsertID reports the last-insert-id from the packet that
// terminated this result set.
func (rs *Rows) LastInsertID() uint64 { return rs.ok.lastInsertID }

// Warnings reports the warning count from the packet that terminated
// this result set.
func (rs *Rows) Warnings() uint16 { return rs.ok.numWarnings }

// Status reports the status flags from the packet that terminated
// this result set.
func (rs *Rows) Status() uint16 { return rs.ok.statusFlags }
