// Package integrity implements the answer commitment scheme. The correct
// choice of a question is stored as hash(secret:index) so the index itself is
// never shipped to clients inside the question payload.
//
// This is not confidentiality: the answer space is four values, so anyone
// holding the secret can enumerate it. The scheme only keeps the plaintext
// answer out of responses.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// DefaultSecret is used when no secret is configured.
const DefaultSecret = "brainbolt-answer-salt"

// ChoiceCount is fixed by the question format.
const ChoiceCount = 4

// Verifier commits to and verifies answer indices with a server-side secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	if secret == "" {
		secret = DefaultSecret
	}
	return &Verifier{secret: secret}
}

// Hash returns the hex commitment for an answer index.
func (v *Verifier) Hash(answerIndex int) string {
	sum := sha256.Sum256([]byte(v.secret + ":" + strconv.Itoa(answerIndex)))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the submitted index matches the stored commitment.
func (v *Verifier) Verify(answerIndex int, commitment string) bool {
	return v.Hash(answerIndex) == commitment
}

// FindCorrectAnswer recovers the committed index by trying all four values.
// Returns -1 when the commitment matches none of them (e.g. wrong secret).
func (v *Verifier) FindCorrectAnswer(commitment string) int {
	for i := 0; i < ChoiceCount; i++ {
		if v.Hash(i) == commitment {
			return i
		}
	}
	return -1
}
