package mysql

// https://dev.mysql.com/doc/internals/en/connection-phase-packets.html

// handshakeV10 is the server greeting. Protocol versions other than
// 10 (notably the pre-4.1 version 9 greeting) are rejected.
type handshakeV10 struct {
	protocolVersion uint8
	serverVersion   string
	connectionID    uint32
	authPluginData  []byte
	capabilityFlags uint32
	characterSet    uint8
	statusFlags     uint16
	authPluginName  string
}

func (e *handshakeV10) decode(r *reader) error {
	e.protocolVersion = r.int1()
	if r.err != nil {
		return r.err
	}
	if e.protocolVersion != 10 {
		return protocolErrf("unsupported handshake protocol version %d", e.protocolVersion)
	}
	e.serverVersion = r.stringNull()
	e.connectionID = r.int4()
	e.authPluginData = r.bytes(8)
	r.skip(1) // filler
	e.capabilityFlags = uint32(r.int2())
	if !r.more() {
		return r.err
	}
	e.characterSet = r.int1()
	e.statusFlags = r.int2()
	e.capabilityFlags |= uint32(r.int2()) << 16
	if r.err != nil {
		return r.err
	}
	var authPluginDataLength uint8
	if e.capabilityFlags&capPluginAuth != 0 {
		authPluginDataLength = r.int1()
	} else {
		r.skip(1)
	}
	r.skip(10) // reserved
	if r.err != nil {
		return r.err
	}
	if e.capabilityFlags&capSecureConnection != 0 {
		// part 2 is max(13, length-8) bytes; lengths under 8 would
		// underflow, so never trust them
		if authPluginDataLength >= 8+13 {
			authPluginDataLength -= 8
		} else {
			authPluginDataLength = 13
		}
		e.authPluginData = append(e.authPluginData, r.bytes(int(authPluginDataLength))...)
	}
	if e.capabilityFlags&capPluginAuth != 0 {
		e.authPluginName = r.stringNull()
	}
	return r.err
}

// scramble returns the 20-byte nonce used by the password hashes,
// without the trailing NUL the server appends to the plugin data.
func (e *handshakeV10) scramble() []byte {
	if len(e.authPluginData) >= 20 {
		return e.authPluginData[:20]
	}
	return e.authPluginData
}

// sslRequest ---

// sslRequest is the truncated HandshakeResponse41 sent before the
// transport is upgraded to TLS.
type sslRequest struct {
	capabilityFlags uint32
	maxPacketSize   uint32
	characterSet    uint8
}

func (e sslRequest) encode(w *writer) error {
	w.int4(e.capabilityFlags | capProtocol41 | capSSL)
	w.int4(e.maxPacketSize)
	w.int1(e.characterSet)
	w.Write(make([]byte, 23))
	return w.err
}

// handshakeResponse41 ---

type handshakeResponse41 struct {
	capabilityFlags uint32
	maxPacketSize   uint32
	characterSet    uint8
	username        string
	authResponse    []byte
	database        string
	authPluginName  string
}

func (e handshakeResponse41) encode(w *writer) error {
	capabilities := e.capabilityFlags | capProtocol41
	if e.database != "" {
		capabilities |= capConnectWithDB
	}
	if e.authPluginName != "" {
		capabilities |= capPluginAuth
	}
	if capabilities&capPluginAuthLenencClientData != 0 {
		return &ConfigError{msg: "PLUGIN_AUTH_LENENC_CLIENT_DATA is not supported"}
	}
	if capabilities&capConnectAttrs != 0 {
		return &ConfigError{msg: "CONNECT_ATTRS is not supported"}
	}

	w.int4(capabilities)
	w.int4(e.maxPacketSize)
	w.int1(e.characterSet)
	w.Write(make([]byte, 23))
	w.stringNull(e.username)
	if capabilities&capSecureConnection != 0 {
		w.bytes1(e.authResponse)
	} else {
		w.bytesNull(e.authResponse)
	}
	if capabilities&capConnectWithDB != 0 {
		w.stringNull(e.database)
	}
	if capabilities&capPluginAuth != 0 {
		w.stringNull(e.authPluginName)
	}
	return w.err
}
