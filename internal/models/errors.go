package models

import "errors"

// Business outcomes. None of these are fatal; the API layer turns them into
// a status code and a user-facing message.
var (
	ErrOutOfStock         = errors.New("out of stock")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrGracePeriodExpired = errors.New("refund grace period expired")
	ErrItemNotFound       = errors.New("item not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrRefundNotFound     = errors.New("refund not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("not allowed")
	ErrRefundExists       = errors.New("refund already requested")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDecisionInProgress = errors.New("refund decision already in progress")
	ErrOrderInProgress    = errors.New("order with this idempotency key is still being processed")
)

// User-facing messages kept verbatim from the storefront pages
const (
	MessageNotEnoughFunds = "Not enough funds."
	MessageOutOfStock     = "Out of stock :("
	MessageSuccessful     = "Successful"
	MessageGraceExpired   = "No longer in grace period"
)

// Message returns the storefront message for a business error, or "" if
// the error has no dedicated wording.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return MessageNotEnoughFunds
	case errors.Is(err, ErrOutOfStock):
		return MessageOutOfStock
	case errors.Is(err, ErrGracePeriodExpired):
		return MessageGraceExpired
	}
	return ""
}
