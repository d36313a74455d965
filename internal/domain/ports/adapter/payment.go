package adapter

import (
	"context"

	"rankblaze-entitlements/internal/domain/model"
)

// PaymentGateway is the hex port for payment providers.
//
// Errors: domain.ErrGatewayUnavailable for network/5xx/timeouts (retryable),
// domain.ErrGatewayRejected wrapping the provider reason for 4xx or an
// unsuccessful response, domain.ErrInvalidSignature for unauthenticated callbacks.
type PaymentGateway interface {
	Name() string

	// Initiate creates a payment at the provider and returns where to send the user.
	Initiate(ctx context.Context, orderID string, amount int64, userID, toolID string) (*model.Checkout, error)
	// GetStatus polls the provider. A transaction the provider does not know
	// yet is reported as PENDING, not as an error.
	GetStatus(ctx context.Context, orderID string) (*model.GatewayStatus, error)
	// ValidateCallback authenticates a raw callback body before any field is trusted.
	ValidateCallback(signatureHeader string, rawBody []byte) (*model.GatewayStatus, error)
}
