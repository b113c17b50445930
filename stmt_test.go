package mysql

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// servePrepare answers COM_STMT_PREPARE for a statement with the
// given parameter and column counts.
func (s *testServer) servePrepare(id uint32, params, cols int) {
	s.reset()
	s.recv()
	s.send([]byte{
		0x00,
		byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24),
		byte(cols), byte(cols >> 8),
		byte(params), byte(params >> 8),
		0x00,
		0x00, 0x00,
	})
	if params > 0 {
		for i := 0; i < params; i++ {
			s.send(colDefBytes("?", MYSQL_TYPE_VAR_STRING, uint16(collationBinary), 0))
		}
		s.send(eofBytes(StatusAutocommit))
	}
	if cols > 0 {
		for i := 0; i < cols; i++ {
			s.send(colDefBytes("?", MYSQL_TYPE_VAR_STRING, uint16(collationBinary), 0))
		}
		s.send(eofBytes(StatusAutocommit))
	}
}

func TestPrepare(t *testing.T) {
	c, done := connected(t, func(s *testServer) {
		s.servePrepare(1, 2, 2)
	})
	stmt, err := c.Prepare("SELECT ?, ?")
	require.NoError(t, err)
	require.Equal(t, 2, stmt.NumParams())
	require.Equal(t, 2, stmt.NumColumns())
	require.Equal(t, uint8(0), c.seq)
	require.Contains(t, c.stmts, uint32(1))
	<-done
}

func TestPrepare_ServerError(t *testing.T) {
	c, done := connected(t, func(s *testServer) {
		s.reset()
		s.recv()
		s.send(errBytes(1064, "42000", "syntax error"))
	})
	_, err := c.Prepare("SELEC ?")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	require.Equal(t, phaseCommand, c.phase)
	<-done
}

func TestExecute_NullBitmapAndTypes(t *testing.T) {
	c, done := connected(t, func(s *testServer) {
		s.servePrepare(1, 2, 2)
		s.reset()
		req := s.recv()
		assert.Equal(s.t, []byte{
			comStmtExecute,
			0x01, 0x00, 0x00, 0x00, // statement id
			0x00,                   // no cursor
			0x01, 0x00, 0x00, 0x00, // iteration count
			0x01,       // NULL bitmap: param 0 is null
			0x01,       // new params bound
			0x06, 0x00, // NULL
			0x03, 0x00, // LONG
			0x07, 0x00, 0x00, 0x00, // int32(7)
		}, req)
		s.send([]byte{0x02})
		s.send(colDefBytes("?", MYSQL_TYPE_NULL, uint16(collationBinary), 0))
		s.send(colDefBytes("?", MYSQL_TYPE_LONG, uint16(collationBinary), 0))
		s.send(eofBytes(StatusAutocommit))
		// binary row: NULL in column 1 (bitmap offset by 2 bits), LONG 7
		s.send([]byte{0x00, 0x04, 0x07, 0x00, 0x00, 0x00})
		s.send(eofBytes(StatusAutocommit))
	})
	stmt, err := c.Prepare("SELECT ?, ?")
	require.NoError(t, err)
	rows, err := stmt.Execute(nil, int32(7))
	require.NoError(t, err)

	row, err := rows.Next()
	require.NoError(t, err)
	require.Equal(t, []interface{}{Null{}, int32(7)}, row)
	_, err = rows.Next()
	require.Equal(t, io.EOF, err)
	require.Equal(t, uint8(0), c.seq)
	require.Equal(t, phaseCommand, c.phase)
	<-done
}

func TestExecute_WrongArity(t *testing.T) {
	c, done := connected(t, func(s *testServer) {
		s.servePrepare(1, 2, 0)
	})
	stmt, err := c.Prepare("SELECT ?, ?")
	require.NoError(t, err)
	_, err = stmt.Execute(int32(1))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, phaseCommand, c.phase)
	<-done
}

func TestExecute_UnsupportedParam(t *testing.T) {
	c, done := connected(t, func(s *testServer) {
		s.servePrepare(1, 1, 0)
	})
	stmt, err := c.Prepare("SELECT ?")
	require.NoError(t, err)
	_, err = stmt.Execute(struct{}{})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	// a bad argument must not poison the connection
	require.Equal(t, phaseCommand, c.phase)
	<-done
}

func TestStmtClose(t *testing.T) {
	c, done := connected(t, func(s *testServer) {
		s.servePrepare(7, 0, 1)
		s.reset()
		req := s.recv()
		assert.Equal(s.t, []byte{comStmtClose, 0x07, 0x00, 0x00, 0x00}, req)
	})
	stmt, err := c.Prepare("SELECT 1")
	require.NoError(t, err)
	require.NoError(t, stmt.Close())
	require.NotContains(t, c.stmts, uint32(7))
	require.NoError(t, stmt.Close()) // idempotent
	_, err = stmt.Execute()
	require.ErrorIs(t, err, ErrStmtClosed)
	<-done
}

func TestStmtSendLongDataAndReset(t *testing.T) {
	c, done := connected(t, func(s *testServer) {
		s.servePrepare(3, 1, 0)
		s.reset()
		req := s.recv()
		assert.Equal(s.t, append([]byte{comStmtSendLongData, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00}, "chunk"...), req)
		s.reset()
		req = s.recv()
		assert.Equal(s.t, []byte{comStmtReset, 0x03, 0x00, 0x00, 0x00}, req)
		s.send(okBytes(StatusAutocommit))
	})
	stmt, err := c.Prepare("INSERT INTO t VALUES (?)")
	require.NoError(t, err)
	require.NoError(t, stmt.SendLongData(0, []byte("chunk")))
	require.True(t, stmt.longData)
	require.NoError(t, stmt.Reset())
	require.False(t, stmt.longData)
	<-done
}
