package mysql

import (
	"strconv"
	"strings"
)

// serverVersion is the numeric [major, minor, patch] of the version
// string from the server greeting, with any "-log"/"+deb" style
// suffix stripped.
type serverVersion []int

func newServerVersion(s string) (serverVersion, error) {
	if i := strings.IndexByte(s, '-'); i != -1 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '+'); i != -1 {
		s = s[:i]
	}
	var sv serverVersion
	for _, v := range strings.Split(s, ".") {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, protocolErrf("invalid server version %q", s)
		}
		sv = append(sv, n)
	}
	if len(sv) != 3 {
		return nil, protocolErrf("invalid server version %q", s)
	}
	return sv, nil
}

func (sv serverVersion) lt(v serverVersion) bool {
	for i := range sv {
		if sv[i] < v[i] {
			return true
		}
		if sv[i] == v[i] {
			continue
		}
		return false
	}
	return false
}

// ServerVersionAtLeast tells whether the server reported a version of
// at least major.minor.patch. Pools and dialects branch on this.
func (c *Conn) ServerVersionAtLeast(major, minor, patch int) (bool, error) {
	sv, err := newServerVersion(c.hs.serverVersion)
	if err != nil {
		return false, err
	}
	return !sv.lt(serverVersion{major, minor, patch}), nil
}
