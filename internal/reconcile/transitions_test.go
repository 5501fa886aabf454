// internal/reconcile/transitions_test.go
package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storelink/pos-backend/internal/models"
)

func TestCanReach(t *testing.T) {
	cases := []struct {
		from models.TransactionStatus
		to   models.TransactionStatus
		want bool
	}{
		{models.TransactionStatusPending, models.TransactionStatusProcessing, true},
		{models.TransactionStatusPending, models.TransactionStatusCompleted, true}, // pass-through
		{models.TransactionStatusPending, models.TransactionStatusFailed, true},    // pass-through
		{models.TransactionStatusPending, models.TransactionStatusCancelled, true},
		{models.TransactionStatusProcessing, models.TransactionStatusCompleted, true},
		{models.TransactionStatusProcessing, models.TransactionStatusFailed, true},
		{models.TransactionStatusProcessing, models.TransactionStatusCancelled, true},
		{models.TransactionStatusCompleted, models.TransactionStatusProcessing, false},
		{models.TransactionStatusCompleted, models.TransactionStatusCancelled, false},
		{models.TransactionStatusCancelled, models.TransactionStatusCompleted, false},
		{models.TransactionStatusFailed, models.TransactionStatusCompleted, false},
		{models.TransactionStatusRefunded, models.TransactionStatusCompleted, false},
		// Cancellation is never reached through a pass-through from a state
		// that has no direct cancel edge.
		{models.TransactionStatusCompleted, models.TransactionStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.want, canReach(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusRankOrdering(t *testing.T) {
	assert.Less(t, statusRank[models.TransactionStatusPending], statusRank[models.TransactionStatusProcessing])
	assert.Less(t, statusRank[models.TransactionStatusProcessing], statusRank[models.TransactionStatusCompleted])
	assert.Less(t, statusRank[models.TransactionStatusCompleted], statusRank[models.TransactionStatusPartiallyRefunded])
	assert.Less(t, statusRank[models.TransactionStatusPartiallyRefunded], statusRank[models.TransactionStatusRefunded])
}
