// internal/reconcile/errors.go
package reconcile

import "errors"

var (
	// ErrNotFound means no local transaction matched any identifier carried
	// by an inbound event. Webhook handlers treat this as a logged non-error.
	ErrNotFound = errors.New("transaction not found")

	// ErrTerminalState distinguishes "operation illegal on a finished
	// transaction" from "transaction does not exist".
	ErrTerminalState = errors.New("transaction already in terminal state")

	// ErrInvalidInput covers creation requests rejected before any record is
	// written (non-positive amount, unknown gateway, bad currency).
	ErrInvalidInput = errors.New("invalid transaction request")
)
