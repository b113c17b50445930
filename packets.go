package mysql

// https://dev.mysql.com/doc/internals/en/packet-OK_Packet.html

type okPacket struct {
	affectedRows        uint64
	lastInsertID        uint64
	statusFlags         uint16
	numWarnings         uint16
	info                string
	sessionStateChanges string
}

// decode parses an OK packet. Under DEPRECATE_EOF the server replaces
// trailing EOF packets with OK-shaped packets whose header is 0xfe;
// both headers are accepted here.
func (p *okPacket) decode(r *reader, capabilities uint32) error {
	header := r.int1()
	if r.err != nil {
		return r.err
	}
	if header != okMarker && header != eofMarker {
		return protocolErrf("okPacket.decode: got header 0x%02x", header)
	}
	p.affectedRows = r.intN()
	p.lastInsertID = r.intN()
	if capabilities&capProtocol41 != 0 {
		p.statusFlags = r.int2()
		p.numWarnings = r.int2()
	} else if capabilities&capTransactions != 0 {
		p.statusFlags = r.int2()
	}
	if r.err != nil {
		return r.err
	}
	if !r.more() {
		return nil
	}
	if capabilities&capSessionTrack != 0 {
		p.info = r.stringN()
		if p.statusFlags&StatusSessionStateChanged != 0 {
			p.sessionStateChanges = r.stringN()
		}
	} else {
		p.info = r.stringEOF()
	}
	return r.err
}

// https://dev.mysql.com/doc/internals/en/packet-ERR_Packet.html

type errPacket struct {
	errorCode      uint16
	sqlStateMarker string
	sqlState       string
	errorMessage   string
}

func (e *errPacket) decode(r *reader, capabilities uint32) error {
	header := r.int1()
	if r.err != nil {
		return r.err
	}
	if header != errMarker {
		return protocolErrf("errPacket.decode: got header 0x%02x", header)
	}
	e.errorCode = r.int2()
	if capabilities&capProtocol41 != 0 {
		e.sqlStateMarker = r.string(1)
		e.sqlState = r.string(5)
	}
	e.errorMessage = r.stringEOF()
	return r.err
}

func (e *errPacket) serverError() *ServerError {
	return &ServerError{
		Code:     e.errorCode,
		SQLState: e.sqlState,
		Message:  e.errorMessage,
	}
}

// https://dev.mysql.com/doc/internals/en/packet-EOF_Packet.html

// eofPacket is the legacy result-set terminator, only seen when
// DEPRECATE_EOF was not negotiated. Its header byte 0xfe is shared
// with the OK-shaped replacement; they are told apart by packet
// length (< 9 bytes means legacy EOF).
type eofPacket struct {
	warnings    uint16
	statusFlags uint16
}

func (e *eofPacket) decode(r *reader, capabilities uint32) error {
	header := r.int1()
	if r.err != nil {
		return r.err
	}
	if header != eofMarker {
		return protocolErrf("eofPacket.decode: got header 0x%02x", header)
	}
	if capabilities&capProtocol41 != 0 {
		e.warnings = r.int2()
		e.statusFlags = r.int2()
	}
	return r.err
}

// https://dev.mysql.com/doc/internals/en/com-query-response.html#column-definition

type columnDef struct {
	schema       string
	table        string
	orgTable     string
	name         string
	orgName      string
	charset      uint16
	columnLength uint32
	typ          uint8
	flags        uint16
	decimals     uint8
}

func (cd *columnDef) decode(r *reader, capabilities uint32) error {
	if capabilities&capProtocol41 == 0 {
		return protocolErrf("ColumnDefinition320 not supported")
	}
	_ = r.stringN() // catalog (always "def")
	cd.schema = r.stringN()
	cd.table = r.stringN()
	cd.orgTable = r.stringN()
	cd.name = r.stringN()
	cd.orgName = r.stringN()
	_ = r.intN() // length of the fixed fields (always 0x0c)
	cd.charset = r.int2()
	cd.columnLength = r.int4()
	cd.typ = r.int1()
	cd.flags = r.int2()
	cd.decimals = r.int1()
	r.skip(2) // filler
	return r.err
}

func (cd *columnDef) column() Column {
	return Column{
		Schema:   cd.schema,
		Table:    cd.table,
		OrgTable: cd.orgTable,
		Name:     cd.name,
		OrgName:  cd.orgName,
		Charset:  cd.charset,
		Length:   cd.columnLength,
		Type:     cd.typ,
		Flags:    cd.flags,
		Decimals: cd.decimals,
	}
}
