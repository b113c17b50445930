package mysql

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

// TLSMode controls whether and how the connection is upgraded to TLS
// after the initial plaintext handshake exchange.
type TLSMode string

const (
	// TLSDisable never upgrades. This is the zero value.
	TLSDisable TLSMode = "disable"
	// TLSPrefer upgrades when the server advertises SSL support,
	// without verifying the server certificate.
	TLSPrefer TLSMode = "prefer"
	// TLSRequire fails unless the server supports SSL; the server
	// certificate is not verified.
	TLSRequire TLSMode = "require"
	// TLSVerifyCA requires SSL and verifies the certificate chain
	// against the configured roots, but not the server name.
	TLSVerifyCA TLSMode = "verify-ca"
	// TLSVerifyFull requires SSL and verifies both the chain and the
	// server name.
	TLSVerifyFull TLSMode = "verify-full"
)

// Config carries everything Connect needs. There is no environment or
// file based configuration at this layer.
type Config struct {
	Username string
	Password string
	Database string

	// Collation is the connection collation id; zero means
	// utf8_general_ci.
	Collation uint8

	// Capabilities is ORed into the default requested capability set,
	// e.g. to ask for DEPRECATE_EOF.
	Capabilities uint32

	TLS       TLSMode
	TLSConfig *tls.Config
	// ServerName is the expected certificate name for TLSVerifyFull.
	// Dial fills it from the address when empty.
	ServerName string

	// Logger enables protocol tracing at debug level. Nil disables
	// all logging.
	Logger *zap.Logger
}

type phase int

const (
	phaseHandshake phase = iota
	phaseAuth
	phaseCommand
	phaseClosed
)

// Conn is one client connection. It is not safe for concurrent use;
// at most one command may be in flight at any time.
type Conn struct {
	conn net.Conn
	seq  uint8
	hs   handshakeV10
	log  *zap.Logger

	phase        phase
	caps         uint32 // effective: requested ∩ advertised
	tlsActive    bool
	status       uint16
	affectedRows uint64
	lastInsertID uint64
	warnings     uint16
	stmts        map[uint32]*Stmt
	rows         *Rows // live row stream, if any
}

// Dial connects to the given address and performs the full handshake.
func Dial(network, address string, config Config) (*Conn, error) {
	nc, err := net.DialTimeout(network, address, 30*time.Second)
	if err != nil {
		return nil, err
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		if err := tc.SetKeepAlive(true); err != nil {
			_ = nc.Close()
			return nil, err
		}
	}
	if config.ServerName == "" {
		if host, _, err := net.SplitHostPort(address); err == nil {
			config.ServerName = host
		}
	}
	c, err := Connect(nc, config)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}

// Connect performs the handshake and authentication over an
// already-established duplex channel. On error the channel is left
// open; closing it is the caller's business.
func Connect(nc net.Conn, config Config) (*Conn, error) {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Conn{
		conn:  nc,
		log:   log,
		phase: phaseHandshake,
		stmts: make(map[uint32]*Stmt),
	}
	if err := c.handshake(config); err != nil {
		c.phase = phaseClosed
		return nil, err
	}
	c.phase = phaseCommand
	c.log.Debug("connected",
		zap.String("serverVersion", c.hs.serverVersion),
		zap.Uint32("connectionID", c.hs.connectionID),
		zap.Bool("tls", c.tlsActive))
	return c, nil
}

func (c *Conn) handshake(config Config) error {
	r := newReader(c.conn, &c.seq)
	if err := c.hs.decode(r); err != nil {
		return err
	}

	requested := defaultCapabilities | config.Capabilities
	c.caps = requested & c.hs.capabilityFlags
	if c.caps&requiredCapabilities != requiredCapabilities {
		return protocolErrf("server lacks required capabilities: have 0x%08x", c.hs.capabilityFlags)
	}
	if config.Database == "" {
		c.caps &^= capConnectWithDB
	}
	collation := config.Collation
	if collation == 0 {
		collation = collationUTF8GeneralCI
	}

	// TLS upgrade happens between SSLRequest and HandshakeResponse41.
	wantTLS := config.TLS != "" && config.TLS != TLSDisable
	sslAdvertised := c.hs.capabilityFlags&capSSL != 0
	if wantTLS && !sslAdvertised && config.TLS != TLSPrefer {
		return protocolErrf("server does not support TLS")
	}
	if wantTLS && sslAdvertised {
		c.caps |= capSSL
		w := newWriter(c.conn, &c.seq)
		if err := (sslRequest{
			capabilityFlags: c.caps,
			maxPacketSize:   1 << 24,
			characterSet:    collation,
		}).encode(w); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		c.conn = tls.Client(c.conn, tlsClientConfig(config))
		c.tlsActive = true
		c.log.Debug("transport upgraded to tls")
	}

	plugin := c.hs.authPluginName
	if plugin == "" {
		plugin = authNativePassword
	}
	scramble := c.hs.scramble()
	if len(scramble) < 20 {
		return authErrf("handshake: short auth plugin data")
	}
	authResponse, err := encryptPassword(plugin, []byte(config.Password), scramble, c.tlsActive)
	if err != nil {
		return err
	}
	c.phase = phaseAuth
	if err := c.write(handshakeResponse41{
		capabilityFlags: c.caps,
		maxPacketSize:   1 << 24,
		characterSet:    collation,
		username:        config.Username,
		authResponse:    authResponse,
		database:        config.Database,
		authPluginName:  plugin,
	}); err != nil {
		return err
	}
	return c.authenticate(config, plugin, scramble)
}

// authenticate runs the post-HandshakeResponse41 exchange: zero or
// one AuthSwitchRequest, any number of AuthMoreData steps, terminated
// by OK or ERR.
func (c *Conn) authenticate(config Config, plugin string, scramble []byte) error {
	var numAuthSwitches int
	for {
		r := newReader(c.conn, &c.seq)
		marker, err := r.peek()
		if err != nil {
			return err
		}
		switch marker {
		case okMarker:
			ok := okPacket{}
			if err := ok.decode(r, c.caps); err != nil {
				return err
			}
			c.applyOK(&ok)
			c.log.Debug("authenticated", zap.String("plugin", plugin))
			return nil
		case errMarker:
			ep := errPacket{}
			if err := ep.decode(r, c.caps); err != nil {
				return err
			}
			return ep.serverError()
		case 0x01:
			amd := authMoreData{}
			if err := amd.decode(r); err != nil {
				return err
			}
			if plugin != authCachingSHA2Password {
				return ErrMalformedPacket
			}
			if len(amd.authPluginData) != 1 {
				return ErrMalformedPacket
			}
			switch amd.authPluginData[0] {
			case fastAuthSuccess:
				// terminating OK follows
			case performFullAuthentication:
				if err := c.fullAuth(config, scramble); err != nil {
					return err
				}
			default:
				return ErrMalformedPacket
			}
		case eofMarker:
			if numAuthSwitches != 0 {
				return authErrf("auth switch requested more than once")
			}
			numAuthSwitches++
			asr := authSwitchRequest{}
			if err := asr.decode(r); err != nil {
				return err
			}
			plugin = asr.pluginName
			scramble = asr.authPluginData
			if len(scramble) < 20 {
				return authErrf("authSwitchRequest: short auth plugin data")
			}
			scramble = scramble[:20]
			c.log.Debug("auth switch", zap.String("plugin", plugin))
			authResponse, err := encryptPassword(plugin, []byte(config.Password), scramble, c.tlsActive)
			if err != nil {
				return err
			}
			if err := c.write(authSwitchResponse{authResponse}); err != nil {
				return err
			}
		default:
			return protocolErrf("unexpected packet 0x%02x during authentication", marker)
		}
	}
}

// fullAuth is the caching_sha2_password slow path: the cleartext
// password over TLS, or RSA-OAEP sealed with the server's public key
// over plaintext.
func (c *Conn) fullAuth(config Config, scramble []byte) error {
	var authResponse []byte
	if c.tlsActive {
		authResponse = append(append([]byte(nil), config.Password...), 0)
	} else {
		if len(scramble) < 20 {
			return authErrf("full authentication: short auth plugin data")
		}
		if err := c.write(requestPublicKey{}); err != nil {
			return err
		}
		r := newReader(c.conn, &c.seq)
		amd := authMoreData{}
		if err := amd.decode(r); err != nil {
			return err
		}
		pubKey, err := decodePEM(amd.authPluginData)
		if err != nil {
			return err
		}
		authResponse, err = encryptPasswordPubKey([]byte(config.Password), scramble, pubKey)
		if err != nil {
			return err
		}
	}
	return c.write(authSwitchResponse{authResponse})
}

func tlsClientConfig(config Config) *tls.Config {
	var conf *tls.Config
	if config.TLSConfig != nil {
		conf = config.TLSConfig.Clone()
	} else {
		conf = &tls.Config{}
	}
	switch config.TLS {
	case TLSVerifyFull:
		conf.ServerName = config.ServerName
	case TLSVerifyCA:
		// chain check without a name check
		roots := conf.RootCAs
		conf.InsecureSkipVerify = true
		conf.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			certs := make([]*x509.Certificate, 0, len(rawCerts))
			for _, raw := range rawCerts {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					return err
				}
				certs = append(certs, cert)
			}
			if len(certs) == 0 {
				return errors.New("mysql: server presented no certificate")
			}
			opts := x509.VerifyOptions{Roots: roots, Intermediates: x509.NewCertPool()}
			for _, cert := range certs[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := certs[0].Verify(opts)
			return err
		}
	default: // TLSPrefer, TLSRequire
		conf.InsecureSkipVerify = true
	}
	return conf
}

// command phase ---

// beginCommand enforces the one-command-in-flight invariant and
// resets the sequence counter for the new request.
func (c *Conn) beginCommand() error {
	switch c.phase {
	case phaseClosed:
		return ErrClosed
	case phaseCommand:
	default:
		return protocolErrf("connection is not in command phase")
	}
	if c.rows != nil {
		return ErrStreamLive
	}
	c.seq = 0
	return nil
}

// commandErr classifies an error from a command response. Server
// errors are recoverable; anything else kills the connection.
func (c *Conn) commandErr(err error) error {
	if err == nil {
		return nil
	}
	var se *ServerError
	if errors.As(err, &se) {
		return err
	}
	return c.fatal(err)
}

func (c *Conn) fatal(err error) error {
	if c.phase != phaseClosed {
		c.phase = phaseClosed
		_ = c.conn.Close()
	}
	return err
}

func (c *Conn) write(event interface{ encode(w *writer) error }) error {
	w := newWriter(c.conn, &c.seq)
	if err := event.encode(w); err != nil {
		return err
	}
	return w.Close()
}

func (c *Conn) applyOK(ok *okPacket) {
	c.status = ok.statusFlags
	c.affectedRows = ok.affectedRows
	c.lastInsertID = ok.lastInsertID
	c.warnings = ok.numWarnings
}

// readOKErr reads the OK-or-ERR response that terminates simple
// commands.
func (c *Conn) readOKErr() (*okPacket, error) {
	r := newReader(c.conn, &c.seq)
	marker, err := r.peek()
	if err != nil {
		return nil, err
	}
	switch marker {
	case okMarker, eofMarker:
		ok := okPacket{}
		if err := ok.decode(r, c.caps); err != nil {
			return nil, err
		}
		c.applyOK(&ok)
		return &ok, nil
	case errMarker:
		ep := errPacket{}
		if err := ep.decode(r, c.caps); err != nil {
			return nil, err
		}
		return nil, ep.serverError()
	default:
		return nil, protocolErrf("got 0x%02x, want OK or ERR", marker)
	}
}

// simple commands ---

type comPacket struct {
	cmd byte
	arg string
}

func (e comPacket) encode(w *writer) error {
	w.int1(e.cmd)
	w.string(e.arg)
	return w.err
}

// Ping checks that the server is alive.
func (c *Conn) Ping() error {
	if err := c.beginCommand(); err != nil {
		return err
	}
	if err := c.write(comPacket{cmd: comPing}); err != nil {
		return c.fatal(err)
	}
	_, err := c.readOKErr()
	return c.commandErr(err)
}

// UseDatabase changes the default database of the session.
func (c *Conn) UseDatabase(name string) error {
	if err := c.beginCommand(); err != nil {
		return err
	}
	if err := c.write(comPacket{cmd: comInitDB, arg: name}); err != nil {
		return c.fatal(err)
	}
	_, err := c.readOKErr()
	return c.commandErr(err)
}

// Quit sends COM_QUIT and closes the transport. The server does not
// respond to COM_QUIT.
func (c *Conn) Quit() error {
	if err := c.beginCommand(); err != nil {
		return err
	}
	err := c.write(comPacket{cmd: comQuit})
	c.phase = phaseClosed
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the transport without the COM_QUIT courtesy. Safe to
// call more than once.
func (c *Conn) Close() error {
	if c.phase == phaseClosed {
		return nil
	}
	c.phase = phaseClosed
	return c.conn.Close()
}

// accessors ---

// ServerVersion reports the version string from the server greeting.
func (c *Conn) ServerVersion() string { return c.hs.serverVersion }

// ConnectionID reports the server-assigned connection (thread) id.
func (c *Conn) ConnectionID() uint32 { return c.hs.connectionID }

// Status reports the status flags from the most recent OK/EOF packet.
func (c *Conn) Status() uint16 { return c.status }

// AffectedRows reports the affected-rows count of the last command.
func (c *Conn) AffectedRows() uint64 { return c.affectedRows }

// LastInsertID reports the last-insert-id of the last command.
func (c *Conn) LastInsertID() uint64 { return c.lastInsertID }

// Warnings reports the warning count of the last command.
func (c *Conn) Warnings() uint16 { return c.warnings }

// TLSActive tells whether the transport has been upgraded to TLS.
func (c *Conn) TLSActive() bool { return c.tlsActive }
