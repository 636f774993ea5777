package privacy

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// PseudonymPrefix marks values that have been pseudonymized.
const PseudonymPrefix = "pseud_"

// Pseudonymizer maps identifiers to stable keyed BLAKE2b digests. Without the
// key the digest cannot be linked back to the identifier.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer creates a pseudonymizer. The key must be 1 to 64 bytes.
func NewPseudonymizer(key []byte) (*Pseudonymizer, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("pseudonym key must be 1-%d bytes", blake2b.Size)
	}
	return &Pseudonymizer{key: append([]byte(nil), key...)}, nil
}

// Pseudonymize returns the pseudonym for value. Already-pseudonymized values
// are returned unchanged so erasure can be re-run.
func (p *Pseudonymizer) Pseudonymize(value string) string {
	if IsPseudonym(value) {
		return value
	}
	h, _ := blake2b.New256(p.key)
	_, _ = h.Write([]byte(value))
	return PseudonymPrefix + hex.EncodeToString(h.Sum(nil))[:32]
}

// IsPseudonym reports whether v was produced by Pseudonymize.
func IsPseudonym(v string) bool {
	return len(v) == len(PseudonymPrefix)+32 && v[:len(PseudonymPrefix)] == PseudonymPrefix
}
