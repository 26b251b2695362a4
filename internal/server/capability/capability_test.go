package capability

import (
	"testing"
	"time"

	"github.com/hushdrop/hushdrop/internal/server/models"
	"github.com/stretchr/testify/assert"
)

func newTestVerifier() (*Verifier, *int) {
	slept := 0
	v := &Verifier{
		maxJitter: time.Millisecond,
		sleep:     func(time.Duration) { slept++ },
	}
	return v, &slept
}

func TestVerify(t *testing.T) {
	rec := &models.Record{
		DeletionToken: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		AppendKey:     "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	fileRec := &models.Record{
		DeletionToken: "cccccccccccccccccccccccccccccccc",
	}

	tests := []struct {
		name      string
		rec       *models.Record
		secret    SecretFunc
		presented string
		want      bool
	}{
		{"correct deletion token", rec, DeletionToken, rec.DeletionToken, true},
		{"correct append key", rec, AppendKey, rec.AppendKey, true},
		{"wrong token", rec, DeletionToken, "dddddddddddddddddddddddddddddddd", false},
		{"swapped secrets", rec, DeletionToken, rec.AppendKey, false},
		{"nil record", nil, DeletionToken, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"empty append key on file record", fileRec, AppendKey, "", false},
		{"dummy secret presented", nil, DeletionToken, dummySecret, false},
		{"empty secret presented against empty stored", fileRec, AppendKey, dummySecret, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestVerifier()
			assert.Equal(t, tt.want, v.Verify(tt.rec, tt.secret, tt.presented))
		})
	}
}

func TestVerifySleepsOnEveryPath(t *testing.T) {
	rec := &models.Record{DeletionToken: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}

	v, slept := newTestVerifier()
	v.Verify(rec, DeletionToken, rec.DeletionToken)
	v.Verify(rec, DeletionToken, "wrong")
	v.Verify(nil, DeletionToken, "wrong")
	assert.Equal(t, 3, *slept)
}
