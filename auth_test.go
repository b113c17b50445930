package mysql

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func testScramble() []byte {
	s := make([]byte, 20)
	for i := range s {
		s[i] = byte(i)
	}
	return s
}

// SHA1(response XOR SHA1(password)) must equal
// SHA1(scramble || SHA1(SHA1(password))).
func TestNativePassword(t *testing.T) {
	password := []byte("test_password")
	scramble := testScramble()
	resp := nativePassword(password, scramble)
	require.Len(t, resp, 20)

	sha1of := func(b ...[]byte) []byte {
		h := sha1.New()
		for _, x := range b {
			h.Write(x)
		}
		return h.Sum(nil)
	}
	sha1Pwd := sha1of(password)
	unXORed := make([]byte, 20)
	for i := range resp {
		unXORed[i] = resp[i] ^ sha1Pwd[i]
	}
	require.Equal(t,
		sha1of(scramble, sha1of(sha1of(password))),
		unXORed)
}

func TestNativePassword_Empty(t *testing.T) {
	require.Nil(t, nativePassword(nil, testScramble()))
}

func TestCachingSHA2Password(t *testing.T) {
	password := []byte("test_password")
	scramble := testScramble()
	resp := cachingSHA2Password(password, scramble)
	require.Len(t, resp, 32)

	sha256of := func(b ...[]byte) []byte {
		h := sha256.New()
		for _, x := range b {
			h.Write(x)
		}
		return h.Sum(nil)
	}
	want := sha256of(password)
	y := sha256of(sha256of(sha256of(password)), scramble)
	for i := range want {
		want[i] ^= y[i]
	}
	require.Equal(t, want, resp)
}

func TestEncryptPassword_ClearRequiresTLS(t *testing.T) {
	_, err := encryptPassword(authClearPassword, []byte("secret"), testScramble(), false)
	require.ErrorIs(t, err, ErrInsecureClearPassword)

	resp, err := encryptPassword(authClearPassword, []byte("secret"), testScramble(), true)
	require.NoError(t, err)
	require.Equal(t, []byte("secret\x00"), resp)
}

func TestEncryptPassword_UnknownPlugin(t *testing.T) {
	_, err := encryptPassword("sha256_password", []byte("secret"), testScramble(), false)
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
}

func TestEncryptPasswordPubKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	password := []byte("test_password")
	scramble := testScramble()

	enc, err := encryptPasswordPubKey(password, scramble, &key.PublicKey)
	require.NoError(t, err)
	require.Len(t, enc, 256)

	plain, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, key, enc, nil)
	require.NoError(t, err)
	want := append(append([]byte(nil), password...), 0)
	for i := range want {
		want[i] ^= scramble[i%len(scramble)]
	}
	require.Equal(t, want, plain)
}

func TestDecodePEM(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	pub, err := decodePEM(buf.Bytes())
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(pub))

	_, err = decodePEM([]byte("not pem at all"))
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
}
