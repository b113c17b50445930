package mysql

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

// Live tests run against a real MySQL server and cross-check results
// with the stock database/sql driver.

var (
	mysqlFlag        = flag.String("mysql", "", "mysql server used for testing")
	network, address string
	user, passwd     string
	db               = "test"
	ssl              bool
	driverURL        string

	skipReason = `SKIPPED: pass -mysql flag to run this test
example: go test -mysql tcp:localhost:3306,ssl,user=root,password=password,db=test
`
)

func TestMain(m *testing.M) {
	flag.Parse()
	if *mysqlFlag != "" {
		colon := strings.IndexByte(*mysqlFlag, ':')
		network, address = (*mysqlFlag)[:colon], (*mysqlFlag)[colon+1:]
		tok := strings.Split(address, ",")
		address = tok[0]
		for _, t := range tok[1:] {
			switch {
			case t == "ssl":
				ssl = true
			case strings.HasPrefix(t, "user="):
				user = strings.TrimPrefix(t, "user=")
			case strings.HasPrefix(t, "password="):
				passwd = strings.TrimPrefix(t, "password=")
			case strings.HasPrefix(t, "db="):
				db = strings.TrimPrefix(t, "db=")
			}
		}
		tls := "false"
		if ssl {
			tls = "skip-verify"
		}
		driverURL = fmt.Sprintf("%s:%s@%s(%s)/%s?tls=%v", user, passwd, network, address, db, tls)
	}
	os.Exit(m.Run())
}

func liveConfig() Config {
	cfg := Config{Username: user, Password: passwd, Database: db}
	if ssl {
		cfg.TLS = TLSRequire
	}
	return cfg
}

func TestLive_ConnectAndPing(t *testing.T) {
	if *mysqlFlag == "" {
		t.Skip(skipReason)
	}
	c, err := Dial(network, address, liveConfig())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Ping())
	require.NotEmpty(t, c.ServerVersion())
}

func TestLive_QueryMatchesDriver(t *testing.T) {
	if *mysqlFlag == "" {
		t.Skip(skipReason)
	}
	c, err := Dial(network, address, liveConfig())
	require.NoError(t, err)
	defer c.Close()

	rows, err := c.Query("select 1, 'abc', null")
	require.NoError(t, err)
	row, err := rows.Next()
	require.NoError(t, err)
	require.Len(t, row, 3)
	require.Equal(t, int64(1), row[0])
	require.Equal(t, "abc", row[1])
	require.Equal(t, Null{}, row[2])
	_, err = rows.Next()
	require.Equal(t, io.EOF, err)

	// the stock driver agrees
	sdb, err := sql.Open("mysql", driverURL)
	require.NoError(t, err)
	defer sdb.Close()
	var n int64
	var s string
	var nv sql.NullString
	require.NoError(t, sdb.QueryRow("select 1, 'abc', null").Scan(&n, &s, &nv))
	require.Equal(t, int64(1), n)
	require.Equal(t, "abc", s)
	require.False(t, nv.Valid)
}

func TestLive_PreparedExecute(t *testing.T) {
	if *mysqlFlag == "" {
		t.Skip(skipReason)
	}
	c, err := Dial(network, address, liveConfig())
	require.NoError(t, err)
	defer c.Close()

	stmt, err := c.Prepare("select ?, ?")
	require.NoError(t, err)
	defer stmt.Close()

	rows, err := stmt.Execute(nil, int32(7))
	require.NoError(t, err)
	row, err := rows.Next()
	require.NoError(t, err)
	require.Equal(t, Null{}, row[0])
	require.EqualValues(t, 7, row[1])
	_, err = rows.Next()
	require.Equal(t, io.EOF, err)
}

func TestLive_ServerErrorKeepsConnectionUsable(t *testing.T) {
	if *mysqlFlag == "" {
		t.Skip(skipReason)
	}
	c, err := Dial(network, address, liveConfig())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Query("not valid sql")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	require.NoError(t, c.Ping())
}
