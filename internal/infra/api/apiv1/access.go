package apiv1

import (
	"errors"
	"net/http"
	"time"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/infra/logging"
)

// GetAccess answers the tool-access page for the authenticated user. It reads
// the entitlement store only.
func (s *Server) GetAccess(w http.ResponseWriter, r *http.Request, params GetAccessParams) {
	userID, ok := s.callerID(w, r, params.UserId)
	if !ok {
		return
	}
	ctx := r.Context()
	chk, err := s.access.HasAccess(ctx, userID, params.ToolId)
	if errors.Is(err, domain.ErrInvalidArgument) {
		s.badRequest(w, r, err)
		return
	}
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Str("tool_id", params.ToolId).Msg("access check failed")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
		return
	}
	if !chk.HasAccess {
		writeJSON(w, http.StatusOK, AccessResponse{HasAccess: false, Message: s.tr(r, "access.denied")})
		return
	}

	exp := chk.Entitlement.ExpiresAt
	out := AccessResponse{HasAccess: true, ExpiresAt: &exp}
	g, err := s.access.Access(ctx, userID, params.ToolId)
	switch {
	case err == nil:
		out.Access = &AccessInfo{Kind: string(g.Kind), Token: g.Token, LoginID: g.LoginID, Password: g.Password}
		out.Message = s.tr(r, "access.granted", exp.Format(time.RFC1123))
	case errors.Is(err, domain.ErrTokenUnavailable), errors.Is(err, domain.ErrToolNotFound):
		out.Message = s.tr(r, "access.token_unavailable")
	case errors.Is(err, domain.ErrNoAccess):
		// Expired between the two reads.
		out = AccessResponse{HasAccess: false, Message: s.tr(r, "access.denied")}
	default:
		logging.With(ctx, s.log).Error().Err(err).Str("tool_id", params.ToolId).Msg("resolve access material")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Checkout starts a purchase at the catalog price for the authenticated user.
func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	userID, ok := s.callerID(w, r, req.UserID)
	if !ok {
		return
	}
	ctx := r.Context()
	order, co, err := s.checkout.Checkout(ctx, userID, req.ToolID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, CheckoutResponse{OrderID: order.ID, CheckoutURL: co.CheckoutURL, Amount: order.Amount})
	case errors.Is(err, domain.ErrInvalidArgument):
		s.badRequest(w, r, err)
	case errors.Is(err, domain.ErrToolNotFound):
		s.fail(w, r, http.StatusNotFound, "tool_not_found", "tool.not_found")
	case errors.Is(err, domain.ErrToolInactive):
		s.fail(w, r, http.StatusConflict, "tool_inactive", "tool.inactive")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		s.fail(w, r, http.StatusBadGateway, "gateway_unavailable", "payment.unavailable")
	case errors.Is(err, domain.ErrGatewayRejected):
		s.fail(w, r, http.StatusBadGateway, "gateway_rejected", "payment.rejected")
	default:
		logging.With(ctx, s.log).Error().Err(err).Msg("checkout failed")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
	}
}

