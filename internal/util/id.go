package util

import (
	"crypto/rand"
	"encoding/hex"
)

const idEntropyBytes = 16

// NewID returns a random identifier with an entity-kind prefix ("cmt",
// "int", "thr", "rxn") so ids stay recognizable in logs and audit rows.
// An empty prefix yields the bare hex form used for token ids.
func NewID(prefix string) string {
	raw := make([]byte, idEntropyBytes)
	_, _ = rand.Read(raw)
	id := hex.EncodeToString(raw)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
