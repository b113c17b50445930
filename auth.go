package mysql

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
)

// auth plugin names
const (
	authNativePassword      = "mysql_native_password"
	authCachingSHA2Password = "caching_sha2_password"
	authClearPassword       = "mysql_clear_password"
)

// caching_sha2_password AuthMoreData codes
const (
	fastAuthSuccess           = 3
	performFullAuthentication = 4
)

// encryptPassword computes the auth response for plugin. tlsActive
// guards the plugins that put the cleartext password on the wire.
func encryptPassword(plugin string, password, scramble []byte, tlsActive bool) ([]byte, error) {
	switch plugin {
	case authNativePassword:
		return nativePassword(password, scramble), nil
	case authCachingSHA2Password:
		return cachingSHA2Password(password, scramble), nil
	case authClearPassword:
		if !tlsActive {
			return nil, ErrInsecureClearPassword
		}
		return append(append([]byte(nil), password...), 0), nil
	}
	return nil, authErrf("unsupported auth plugin %q", plugin)
}

// https://dev.mysql.com/doc/internals/en/secure-password-authentication.html
// SHA1(password) XOR SHA1("20-bytes random data from server" <concat> SHA1(SHA1(password)))
func nativePassword(password, scramble []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	hash := sha1.New()
	sha1 := func(b []byte) []byte {
		hash.Reset()
		hash.Write(b)
		return hash.Sum(nil)
	}
	x := sha1(password)
	y := sha1(append(append([]byte(nil), scramble[:20]...), sha1(sha1(password))...))
	for i, b := range y {
		x[i] ^= b
	}
	return x
}

// XOR(SHA256(password), SHA256(SHA256(SHA256(password)), scramble))
func cachingSHA2Password(password, scramble []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	hash := sha256.New()
	sha256 := func(b []byte) []byte {
		hash.Reset()
		hash.Write(b)
		return hash.Sum(nil)
	}
	x := sha256(password)
	y := sha256(append(sha256(sha256(password)), scramble[:20]...))
	for i, b := range y {
		x[i] ^= b
	}
	return x
}

func decodePEM(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, authErrf("no PEM data in server response")
	}
	pkix, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, authErrf("invalid server public key: %v", err)
	}
	pub, ok := pkix.(*rsa.PublicKey)
	if !ok {
		return nil, authErrf("server public key is not RSA")
	}
	return pub, nil
}

// encryptPasswordPubKey obfuscates the NUL-terminated password by
// XOR-ing with the scramble repeated, then seals it with RSA-OAEP
// using SHA-1.
func encryptPasswordPubKey(password, scramble []byte, pub *rsa.PublicKey) ([]byte, error) {
	scramble = scramble[:20]
	plain := make([]byte, len(password)+1)
	copy(plain, password)
	for i := range plain {
		plain[i] ^= scramble[i%len(scramble)]
	}
	enc, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plain, nil)
	if err != nil {
		return nil, authErrf("rsa encryption failed: %v", err)
	}
	return enc, nil
}

// packets ----

type authMoreData struct {
	authPluginData []byte
}

func (e *authMoreData) decode(r *reader) error {
	header := r.int1()
	if r.err != nil {
		return r.err
	}
	if header != 0x01 {
		return protocolErrf("authMoreData.decode: got header 0x%02x", header)
	}
	e.authPluginData = r.bytesEOF()
	return r.err
}

type authSwitchRequest struct {
	pluginName     string
	authPluginData []byte
}

func (e *authSwitchRequest) decode(r *reader) error {
	header := r.int1()
	if r.err != nil {
		return r.err
	}
	if header != eofMarker {
		return protocolErrf("authSwitchRequest.decode: got header 0x%02x", header)
	}
	e.pluginName = r.stringNull()
	e.authPluginData = r.bytesEOF()
	return r.err
}

type authSwitchResponse struct {
	authResponse []byte
}

func (e authSwitchResponse) encode(w *writer) error {
	w.Write(e.authResponse)
	return w.err
}

type requestPublicKey struct{}

func (e requestPublicKey) encode(w *writer) error {
	return w.int1(2)
}
