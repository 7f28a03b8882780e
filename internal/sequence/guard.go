// Package sequence enforces gapless, strictly-ordered action admission per device.
package sequence

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
)

// Checker verifies the integrity value of one envelope. It detects corruption
// and tampering in transit; it is not a non-repudiation signature.
type Checker interface {
	Verify(env model.ActionEnvelope, deviceAuthToken string) error
}

// Guard admits envelope batches against a device's expected sequence number.
type Guard struct {
	checker Checker
}

// NewGuard constructs a guard. A nil checker falls back to the default
// sha256-based checker.
func NewGuard(checker Checker) *Guard {
	if checker == nil {
		checker = Sha256Checker{}
	}
	return &Guard{checker: checker}
}

// Admit verifies integrity and strict sequence equality for every envelope in
// batch order. The first failure rejects the entire batch; on success it
// returns the next sequence number the device row must advance to within the
// same commit as the applied mutations.
//
// Strict equality makes resends idempotent: a batch that was already applied
// arrives with sequence numbers below the advanced expectation and is rejected
// instead of double-applied.
func (g *Guard) Admit(expected int64, deviceAuthToken string, batch []model.ActionEnvelope) (int64, error) {
	for i, env := range batch {
		if err := g.checker.Verify(env, deviceAuthToken); err != nil {
			return expected, fmt.Errorf("envelope[%d]: %w", i, err)
		}
		if env.SequenceNumber != expected {
			return expected, fmt.Errorf("envelope[%d]: got %d, expected %d: %w",
				i, env.SequenceNumber, expected, errs.ErrSequenceMismatch)
		}
		expected++
	}
	return expected, nil
}

// Sha256Checker is the default integrity checker: a hex sha256 digest over the
// sequence number, the device auth token and the encoded action.
type Sha256Checker struct{}

// ComputeIntegrity returns the integrity value a device must attach to an envelope.
func ComputeIntegrity(sequenceNumber int64, deviceAuthToken, encodedAction string) string {
	h := sha256.Sum256([]byte(strconv.FormatInt(sequenceNumber, 10) + deviceAuthToken + encodedAction))
	return hex.EncodeToString(h[:])
}

// Verify recomputes the digest and compares in constant time.
func (Sha256Checker) Verify(env model.ActionEnvelope, deviceAuthToken string) error {
	want := ComputeIntegrity(env.SequenceNumber, deviceAuthToken, env.EncodedAction)
	if subtle.ConstantTimeCompare([]byte(want), []byte(env.Integrity)) != 1 {
		return errs.ErrIntegrityMismatch
	}
	return nil
}
