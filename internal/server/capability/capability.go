// Package capability checks deletion tokens and append keys against stored
// records. Comparisons are constant-time and padded with random jitter so
// response latency does not reveal whether a record or secret exists.
package capability

import (
	"crypto/subtle"
	"math/rand"
	"time"

	"github.com/hushdrop/hushdrop/internal/server/models"
)

// dummySecret stands in for the stored secret when the record is missing or
// carries no secret of the requested kind. It keeps the comparison running
// over the same length as a real 128-bit hex token.
const dummySecret = "00000000000000000000000000000000"

// SecretFunc selects which stored secret a verification runs against.
type SecretFunc func(*models.Record) string

// DeletionToken selects the record's deletion token.
func DeletionToken(r *models.Record) string { return r.DeletionToken }

// AppendKey selects the record's append key. File records carry an empty
// append key, so verification against them always fails.
func AppendKey(r *models.Record) string { return r.AppendKey }

// Verifier compares presented secrets against stored ones.
type Verifier struct {
	maxJitter time.Duration
	sleep     func(time.Duration)
}

// NewVerifier returns a Verifier with the default jitter bound.
func NewVerifier() *Verifier {
	return &Verifier{maxJitter: 10 * time.Millisecond, sleep: time.Sleep}
}

// Verify reports whether presented matches the secret selected from rec.
// The comparison runs even when rec is nil or the selected secret is empty,
// so absent records cost the same as present ones. Verify never succeeds
// against a missing record or an empty stored secret.
func (v *Verifier) Verify(rec *models.Record, secret SecretFunc, presented string) bool {
	stored := dummySecret
	present := false
	if rec != nil {
		if s := secret(rec); s != "" {
			stored = s
			present = true
		}
	}

	match := subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1

	if v.maxJitter > 0 {
		v.sleep(time.Duration(rand.Int63n(int64(v.maxJitter))))
	}

	return present && match
}
