package mysql

// https://dev.mysql.com/doc/internals/en/com-query-response.html#column-type
const (
	MYSQL_TYPE_DECIMAL     = 0x00
	MYSQL_TYPE_TINY        = 0x01
	MYSQL_TYPE_SHORT       = 0x02
	MYSQL_TYPE_LONG        = 0x03
	MYSQL_TYPE_FLOAT       = 0x04
	MYSQL_TYPE_DOUBLE      = 0x05
	MYSQL_TYPE_NULL        = 0x06
	MYSQL_TYPE_TIMESTAMP   = 0x07
	MYSQL_TYPE_LONGLONG    = 0x08
	MYSQL_TYPE_INT24       = 0x09
	MYSQL_TYPE_DATE        = 0x0a
	MYSQL_TYPE_TIME        = 0x0b
	MYSQL_TYPE_DATETIME    = 0x0c
	MYSQL_TYPE_YEAR        = 0x0d
	MYSQL_TYPE_NEWDATE     = 0x0e
	MYSQL_TYPE_VARCHAR     = 0x0f
	MYSQL_TYPE_BIT         = 0x10
	MYSQL_TYPE_TIMESTAMP2  = 0x11
	MYSQL_TYPE_DATETIME2   = 0x12
	MYSQL_TYPE_TIME2       = 0x13
	MYSQL_TYPE_JSON        = 0xf5
	MYSQL_TYPE_NEWDECIMAL  = 0xf6
	MYSQL_TYPE_ENUM        = 0xf7
	MYSQL_TYPE_SET         = 0xf8
	MYSQL_TYPE_TINY_BLOB   = 0xf9
	MYSQL_TYPE_MEDIUM_BLOB = 0xfa
	MYSQL_TYPE_LONG_BLOB   = 0xfb
	MYSQL_TYPE_BLOB        = 0xfc
	MYSQL_TYPE_VAR_STRING  = 0xfd
	MYSQL_TYPE_STRING      = 0xfe
	MYSQL_TYPE_GEOMETRY    = 0xff
)

// column definition flags
const (
	flagNotNull       uint16 = 0x0001
	flagPrimaryKey    uint16 = 0x0002
	flagUniqueKey     uint16 = 0x0004
	flagMultipleKey   uint16 = 0x0008
	flagBlob          uint16 = 0x0010
	flagUnsigned      uint16 = 0x0020
	flagZerofill      uint16 = 0x0040
	flagBinary        uint16 = 0x0080
	flagEnum          uint16 = 0x0100
	flagAutoIncrement uint16 = 0x0200
)

// paramUnsigned is set in the high byte of the 2-byte parameter type
// in COM_STMT_EXECUTE for unsigned integer values.
const paramUnsigned uint16 = 0x8000

// Null is the value of a NULL column.
type Null struct{}

// Decimal is the exact string form of a DECIMAL/NUMERIC column.
type Decimal string

// Column is the metadata of one result-set column.
type Column struct {
	Schema   string
	Table    string
	OrgTable string
	Name     string
	OrgName  string
	Charset  uint16 // collation id; 63 is binary
	Length   uint32
	Type     uint8
	Flags    uint16
	Decimals uint8
}

// Unsigned tells whether an integer column is unsigned.
func (c Column) Unsigned() bool { return c.Flags&flagUnsigned != 0 }

// Binary tells whether string payloads of this column are opaque
// bytes rather than text.
func (c Column) Binary() bool { return c.Charset == uint16(collationBinary) }
