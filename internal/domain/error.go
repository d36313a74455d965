package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Gateway
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected request")
	ErrInvalidSignature   = errors.New("invalid callback signature")

	// Orders
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrAmountMismatch    = errors.New("gateway amount does not match order amount")

	// Reconciliation
	ErrReconcileInFlight = errors.New("reconciliation already in flight for order")
	ErrGrantInconsistent = errors.New("order completed but entitlement not granted")

	// Catalog / access
	ErrToolNotFound     = errors.New("tool not found")
	ErrToolInactive     = errors.New("tool is not available for purchase")
	ErrNoAccess         = errors.New("no active entitlement")
	ErrTokenUnavailable = errors.New("tool has no access token configured")
	ErrRateLimited      = errors.New("too many requests")
)
