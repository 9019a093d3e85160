package routeconfig

import (
	"encoding/hex"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3 keyed hash of a document's bytes as stored on disk.
type Digest [32]byte

// documentDomainKey keeps document digests distinct from any other BLAKE3
// use of the same bytes. Changing it invalidates stored revision digests.
var documentDomainKey = [32]byte{
	'r', 'o', 'u', 't', 'e', 'd', 'i', 't', '.', 'd', 'o', 'c', 'u', 'm', 'e', 'n',
	't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func DigestOf(data []byte) Digest {
	hasher, err := blake3.NewKeyed(documentDomainKey[:])
	if err != nil {
		panic("routeconfig: blake3 keyed hash: " + err.Error())
	}
	_, _ = hasher.Write(data)
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}

// DigestFile hashes the current content of path.
func DigestFile(path string) (Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Digest{}, &IOError{Op: "read", Path: path, Err: err}
	}
	return DigestOf(data), nil
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes the hex form produced by String.
func ParseDigest(s string) (Digest, bool) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(d) {
		return Digest{}, false
	}
	copy(d[:], b)
	return d, true
}
