package apiv1

import (
	"errors"
	"net/http"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/infra/metrics"
	"rankblaze-entitlements/internal/usecase"
)

func toolView(t *model.Tool) Tool {
	v := Tool{
		ID:           t.ID,
		Name:         t.Name,
		PriceMinor:   t.PriceMinor,
		ValidityDays: t.ValidityDays,
		Active:       t.Active,
		UpdatedAt:    t.UpdatedAt,
	}
	if t.Payload != nil {
		v.TokenKind = string(t.Payload.Kind())
	}
	return v
}

func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.catalog.ListTools(r.Context(), true)
	if err != nil {
		s.log.Error().Err(err).Msg("list tools")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
		return
	}
	items := make([]Tool, 0, len(tools))
	for _, t := range tools {
		items = append(items, toolView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) GetTool(w http.ResponseWriter, r *http.Request, toolID string) {
	t, err := s.catalog.GetTool(r.Context(), toolID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toolView(t))
	case errors.Is(err, domain.ErrToolNotFound):
		s.fail(w, r, http.StatusNotFound, "tool_not_found", "tool.not_found")
	default:
		s.log.Error().Err(err).Str("tool_id", toolID).Msg("get tool")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
	}
}

// UpsertTool creates or replaces a catalog entry. Omitting tokenKind keeps the
// stored access material.
func (s *Server) UpsertTool(w http.ResponseWriter, r *http.Request, toolID string) {
	var req UpsertToolRequest
	if err := decodeBody(r, &req); err != nil {
		metrics.IncAdminRequest("upsert_tool", "bad_request")
		s.badRequest(w, r, err)
		return
	}
	payload, err := payloadFrom(req)
	if err != nil {
		metrics.IncAdminRequest("upsert_tool", "bad_request")
		s.badRequest(w, r, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	t, err := s.catalog.UpsertTool(r.Context(), usecase.ToolInput{
		ID:           toolID,
		Name:         req.Name,
		PriceMinor:   req.PriceMinor,
		ValidityDays: req.ValidityDays,
		Active:       active,
		Payload:      payload,
	})
	switch {
	case err == nil:
		metrics.IncAdminRequest("upsert_tool", "ok")
		writeJSON(w, http.StatusOK, toolView(t))
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncAdminRequest("upsert_tool", "bad_request")
		s.badRequest(w, r, err)
	default:
		metrics.IncAdminRequest("upsert_tool", "error")
		s.log.Error().Err(err).Str("tool_id", toolID).Msg("upsert tool")
		s.fail(w, r, http.StatusInternalServerError, "internal", "error.internal")
	}
}

func payloadFrom(req UpsertToolRequest) (model.TokenPayload, error) {
	switch model.TokenKind(req.TokenKind) {
	case "":
		return nil, nil
	case model.TokenKindSingle:
		return model.SingleToken{Token: req.Token}, nil
	case model.TokenKindPool:
		return model.TokenPool{Tokens: req.Tokens}, nil
	case model.TokenKindCredentials:
		return model.Credentials{ID: req.LoginID, Password: req.Password}, nil
	}
	return nil, domain.ErrInvalidArgument
}
