// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/adapter"
	"rankblaze-entitlements/internal/domain/ports/repository"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// Checkout creates an order at the catalog price and asks the gateway for
	// a checkout URL. A gateway failure leaves the order CREATED; the poller
	// and ManualFix can still settle it.
	Checkout(ctx context.Context, userID, toolID string) (*model.Order, *model.Checkout, error)
}

type checkoutUC struct {
	orders  repository.OrderRepository
	tools   repository.ToolRepository
	gateway adapter.PaymentGateway
	log     *zerolog.Logger
}

func NewCheckoutUseCase(orders repository.OrderRepository, tools repository.ToolRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *checkoutUC {
	l := logger.With().Str("component", "checkout").Logger()
	return &checkoutUC{orders: orders, tools: tools, gateway: gateway, log: &l}
}

func (u *checkoutUC) Checkout(ctx context.Context, userID, toolID string) (*model.Order, *model.Checkout, error) {
	tool, err := u.tools.FindByID(ctx, repository.NoTX, toolID)
	if err != nil {
		return nil, nil, err
	}
	if !tool.Active {
		return nil, nil, domain.ErrToolInactive
	}

	order, err := model.NewOrder(userID, tool.ID, tool.PriceMinor)
	if err != nil {
		return nil, nil, err
	}
	if err := u.orders.Create(ctx, repository.NoTX, order); err != nil {
		return nil, nil, err
	}
	log := logging.With(logging.WithOrderID(logging.WithUserID(ctx, userID), order.ID), u.log)
	metrics.IncPayment("created")

	co, err := u.gateway.Initiate(ctx, order.ID, order.Amount, userID, tool.ID)
	if err != nil {
		metrics.IncPayment("initiate_error")
		log.Warn().Err(err).Msg("gateway initiate failed")
		return order, nil, err
	}

	f := model.OrderFields{}
	if co.GatewayTransactionID != "" {
		gw := co.GatewayTransactionID
		f.GatewayTransactionID = &gw
	}
	updated, err := u.orders.Transition(ctx, repository.NoTX, order.ID, model.OrderStatusInitiated, f)
	switch {
	case err == nil:
		order = updated
	case errors.Is(err, domain.ErrInvalidTransition):
		// A callback raced ahead and already moved the order.
		if cur, ferr := u.orders.FindByOrderID(ctx, repository.NoTX, order.ID); ferr == nil {
			order = cur
		}
	default:
		return order, nil, err
	}
	metrics.IncPayment("initiated")
	log.Info().Int64("amount", order.Amount).Msg("checkout initiated")
	return order, co, nil
}
