// Package idhash derives stable ids from the inputs that identify a record.
package idhash

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"
)

// digest returns base58(sha256(parts joined by "|")).
func digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return base58.Encode(sum[:])
}
