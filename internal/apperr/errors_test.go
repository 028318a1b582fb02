package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseTransactionErrorKeepsCause(t *testing.T) {
	cause := &ConcurrentModificationError{Resource: "customer", ID: "c-1", Expected: 1, Actual: 2}
	err := fmt.Errorf("update loyalty: %w", &DatabaseTransactionError{Op: "transaction", Err: cause})

	assert.ErrorIs(t, err, ErrDatabaseTransaction)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	var cme *ConcurrentModificationError
	assert.ErrorAs(t, err, &cme)
	assert.Equal(t, int64(2), cme.Actual)
	assert.Equal(t, "CONCURRENT_MODIFICATION", Code(err))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", Validation("rating", "must be between 0 and 5"), false},
		{"not found", NotFound("ticket", "t-1"), false},
		{"state", &InvalidStateTransitionError{Resource: "ticket", From: "USED", To: "CONFIRMED"}, false},
		{"duplicate", &DuplicateResourceError{Resource: "User", Identifier: "a@b.c"}, false},
		{"version", &ConcurrentModificationError{}, true},
		{"driver", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "VALIDATION_ERROR", Code(Validation("email", "invalid")))
	assert.Equal(t, "DUPLICATE_RESOURCE", Code(&DuplicateResourceError{}))
	assert.Equal(t, "DATABASE_TRANSACTION_ERROR", Code(&DatabaseTransactionError{Err: errors.New("boom")}))
	assert.Equal(t, "CACHE_ERROR", Code(&CacheError{Op: "set", Key: "k", Err: errors.New("boom")}))
	assert.Equal(t, "INTERNAL_ERROR", Code(errors.New("boom")))
}
