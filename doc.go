/*
Package mysql implements the client side of the MySQL/MariaDB
client/server wire protocol.

It is a transport-level library: it speaks protocol version 10 over a
duplex byte channel, drives the connection and authentication
handshake (including TLS upgrade and auth-plugin switching), and
exposes textual and prepared-statement execution with streamed result
rows. Connection pooling, SQL parsing and object mapping are left to
the layers above.

to connect to mysql server:

	c, err := mysql.Dial("tcp", "localhost:3306", mysql.Config{
		Username: "root",
		Password: "secret",
		Database: "mydb",
		TLS:      mysql.TLSPrefer,
	})
	if err != nil {
		return err
	}
	defer c.Close()

to run a query and stream its rows:

	rows, err := c.Query("select id, name from users")
	if err != nil {
		return err
	}
	defer rows.Close()
	for {
		row, err := rows.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		fmt.Println(row)
	}

prepared statements:

	stmt, err := c.Prepare("select name from users where id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()
	rows, err = stmt.Execute(int32(7))

Only one command may be outstanding per connection; a live row stream
must be drained or closed before the next command is issued.
*/
package mysql
