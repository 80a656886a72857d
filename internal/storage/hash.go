// Package storage provides the blob store adapter (Google Cloud Storage)
// and the content digesting used to verify archivos against their announced
// hashes before they are persisted.
package storage

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Digests holds the hex digests of an archivo's bytes.
type Digests struct {
	Sha1   string
	Sha256 string
}

// Digest computes both protocol digests over data.
func Digest(data []byte) Digests {
	s1 := sha1.Sum(data)
	s256 := sha256.Sum256(data)
	return Digests{
		Sha1:   hex.EncodeToString(s1[:]),
		Sha256: hex.EncodeToString(s256[:]),
	}
}

// Matches compares the computed digests against the announced ones. Hex is
// compared case-insensitively; an empty announced SHA-1 is tolerated (some
// peers only send SHA-256), an empty SHA-256 is not.
func (d Digests) Matches(announcedSha1, announcedSha256 string) bool {
	if announcedSha256 == "" || !strings.EqualFold(d.Sha256, announcedSha256) {
		return false
	}
	if announcedSha1 != "" && !strings.EqualFold(d.Sha1, announcedSha1) {
		return false
	}
	return true
}
