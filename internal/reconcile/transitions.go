// internal/reconcile/transitions.go
package reconcile

import (
	"github.com/storelink/pos-backend/internal/models"
)

// primaryEdges are the legal moves of the primary payment flow. Refund states
// are reached only through refund bookkeeping, never through a direct edge
// request, so they do not appear as targets here.
var primaryEdges = map[models.TransactionStatus][]models.TransactionStatus{
	models.TransactionStatusPending: {
		models.TransactionStatusProcessing,
		models.TransactionStatusCancelled,
	},
	models.TransactionStatusProcessing: {
		models.TransactionStatusCompleted,
		models.TransactionStatusFailed,
		// Only when the gateway confirms no funds were captured.
		models.TransactionStatusCancelled,
	},
}

// statusRank orders statuses along the happy path so a racing event targeting
// an earlier state can be recognized and dropped. Failed and cancelled are
// terminal; nothing outranks them from within the primary flow.
var statusRank = map[models.TransactionStatus]int{
	models.TransactionStatusPending:           0,
	models.TransactionStatusProcessing:        1,
	models.TransactionStatusCompleted:         2,
	models.TransactionStatusPartiallyRefunded: 3,
	models.TransactionStatusRefunded:          4,
}

func hasEdge(from, to models.TransactionStatus) bool {
	for _, next := range primaryEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// canReach reports whether a legal path of primary edges leads from one
// status to another. Webhooks can arrive out of order, so a capture event may
// hit a transaction that never saw its authorization; the pass-through from
// pending to completed runs through processing and is legal. Cancellation is
// never reached through a pass-through.
func canReach(from, to models.TransactionStatus) bool {
	if hasEdge(from, to) {
		return true
	}
	if to == models.TransactionStatusCancelled {
		return false
	}
	for _, mid := range primaryEdges[from] {
		if mid == models.TransactionStatusCancelled {
			continue
		}
		if canReach(mid, to) {
			return true
		}
	}
	return false
}
