package mysql

// Capability Flags: https://dev.mysql.com/doc/internals/en/capability-flags.html
const (
	capLongPassword               = 0x00000001
	capFoundRows                  = 0x00000002
	capLongFlag                   = 0x00000004
	capConnectWithDB              = 0x00000008
	capNoSchema                   = 0x00000010
	capCompress                   = 0x00000020
	capODBC                       = 0x00000040
	capLocalFiles                 = 0x00000080
	capProtocol41                 = 0x00000200
	capInteractive                = 0x00000400
	capSSL                        = 0x00000800
	capTransactions               = 0x00002000
	capSecureConnection           = 0x00008000
	capMultiStatements            = 0x00010000
	capMultiResults               = 0x00020000
	capPSMultiResults             = 0x00040000
	capPluginAuth                 = 0x00080000
	capConnectAttrs               = 0x00100000
	capPluginAuthLenencClientData = 0x00200000
	capSessionTrack               = 0x00800000
	capDeprecateEOF               = 0x01000000
)

// defaultCapabilities is what the client asks for before intersecting
// with what the server advertises.
const defaultCapabilities = capLongPassword | capFoundRows | capLongFlag |
	capConnectWithDB | capProtocol41 | capInteractive | capTransactions |
	capSecureConnection | capMultiStatements | capMultiResults |
	capPSMultiResults | capPluginAuth | capSessionTrack

// requiredCapabilities must survive the intersection, else the
// handshake is aborted.
const requiredCapabilities = capProtocol41 | capSecureConnection | capPluginAuth

// Status Flags: https://dev.mysql.com/doc/internals/en/status-flags.html
const (
	StatusInTrans             uint16 = 0x0001
	StatusAutocommit          uint16 = 0x0002
	StatusMoreResultsExist    uint16 = 0x0008
	StatusNoGoodIndexUsed     uint16 = 0x0010
	StatusNoIndexUsed         uint16 = 0x0020
	StatusCursorExists        uint16 = 0x0040
	StatusLastRowSent         uint16 = 0x0080
	StatusDBDropped           uint16 = 0x0100
	StatusNoBackslashEscapes  uint16 = 0x0200
	StatusMetadataChanged     uint16 = 0x0400
	StatusQueryWasSlow        uint16 = 0x0800
	StatusPSOutParams         uint16 = 0x1000
	StatusInTransReadonly     uint16 = 0x2000
	StatusSessionStateChanged uint16 = 0x4000
)

// packet markers
const (
	okMarker          = 0x00
	localInfileMarker = 0xfb
	eofMarker         = 0xfe
	errMarker         = 0xff
)

// commands
const (
	comQuit             = 0x01
	comInitDB           = 0x02
	comQuery            = 0x03
	comPing             = 0x0e
	comStmtPrepare      = 0x16
	comStmtExecute      = 0x17
	comStmtSendLongData = 0x18
	comStmtClose        = 0x19
	comStmtReset        = 0x1a
)

// Collation ids the library needs by name. Values are opaque
// otherwise; non-binary payloads are returned tagged with the
// column's collation.
const (
	collationUTF8GeneralCI  uint8 = 33
	collationBinary         uint8 = 63
	collationUTF8MB4General uint8 = 45
)
