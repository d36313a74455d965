package apiv1

import (
	"errors"
	"net/http"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/infra/metrics"
)

// CreateSession exchanges the admin API key for a JWT session cookie.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	if !s.auth.CheckAPIKey(req.APIKey) {
		metrics.IncAdminRequest("session", "unauthorized")
		logging.With(r.Context(), s.log).Warn().Str("event", "security").Str("remote_addr", r.RemoteAddr).Msg("admin login rejected")
		s.fail(w, r, http.StatusUnauthorized, "unauthorized", "error.unauthorized")
		return
	}
	tok, err := s.auth.Mint(w)
	if err != nil {
		metrics.IncAdminRequest("session", "error")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
		return
	}
	metrics.IncAdminRequest("session", "ok")
	writeJSON(w, http.StatusOK, SessionResponse{Token: tok})
}

func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) RevokeEntitlement(w http.ResponseWriter, r *http.Request, userID, toolID string) {
	err := s.access.Revoke(r.Context(), userID, toolID)
	switch {
	case err == nil:
		metrics.IncAdminRequest("revoke", "ok")
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncAdminRequest("revoke", "not_found")
		s.fail(w, r, http.StatusNotFound, "not_found", "access.denied")
	case errors.Is(err, domain.ErrInvalidArgument):
		s.badRequest(w, r, err)
	default:
		metrics.IncAdminRequest("revoke", "error")
		s.log.Error().Err(err).Msg("revoke entitlement")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
	}
}

func (s *Server) ListUserEntitlements(w http.ResponseWriter, r *http.Request, userID string) {
	ents, recs, err := s.access.ListEntitlements(r.Context(), userID)
	if err != nil {
		metrics.IncAdminRequest("list_entitlements", "error")
		s.log.Error().Err(err).Msg("list entitlements")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
		return
	}
	now := s.now()
	out := UserEntitlementsResponse{
		UserID:       userID,
		Entitlements: make([]Entitlement, 0, len(ents)),
		Payments:     make([]PaymentRecord, 0, len(recs)),
	}
	for _, e := range ents {
		out.Entitlements = append(out.Entitlements, Entitlement{
			ToolID:        e.ToolID,
			Active:        e.Active,
			HasAccess:     e.HasAccessAt(now),
			GrantedAt:     e.GrantedAt,
			ExpiresAt:     e.ExpiresAt,
			SourceOrderID: e.SourceOrderID,
		})
	}
	for _, p := range recs {
		out.Payments = append(out.Payments, PaymentRecord{
			OrderID:              p.OrderID,
			ToolID:               p.ToolID,
			GatewayTransactionID: p.GatewayTransactionID,
			Amount:               p.Amount,
			CompletedAt:          p.CompletedAt,
		})
	}
	metrics.IncAdminRequest("list_entitlements", "ok")
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	day, month, err := s.stats.Revenue(r.Context())
	if err != nil {
		metrics.IncAdminRequest("stats", "error")
		s.log.Error().Err(err).Msg("revenue stats")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
		return
	}
	metrics.IncAdminRequest("stats", "ok")
	writeJSON(w, http.StatusOK, StatsResponse{RevenueDay: day, RevenueMonth: month})
}
