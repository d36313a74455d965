// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
	"rankblaze-entitlements/internal/infra/metrics"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

type AccessUseCase interface {
	// HasAccess reads the entitlement store only; it never calls the gateway.
	HasAccess(ctx context.Context, userID, toolID string) (model.AccessCheck, error)
	// Access resolves the tool's access material for a user with access.
	Access(ctx context.Context, userID, toolID string) (*model.AccessGrant, error)
	ListEntitlements(ctx context.Context, userID string) ([]*model.Entitlement, []*model.PaymentRecord, error)
	Revoke(ctx context.Context, userID, toolID string) error
}

type accessUC struct {
	entitlements repository.EntitlementRepository
	records      repository.PaymentRecordRepository
	tools        repository.ToolRepository
	now          func() time.Time
	log          *zerolog.Logger
}

func NewAccessUseCase(ents repository.EntitlementRepository, records repository.PaymentRecordRepository, tools repository.ToolRepository, logger *zerolog.Logger) *accessUC {
	l := logger.With().Str("component", "access").Logger()
	return &accessUC{entitlements: ents, records: records, tools: tools, now: time.Now, log: &l}
}

func (u *accessUC) WithClock(now func() time.Time) *accessUC {
	u.now = now
	return u
}

func (u *accessUC) HasAccess(ctx context.Context, userID, toolID string) (model.AccessCheck, error) {
	if userID == "" || toolID == "" {
		return model.AccessCheck{}, domain.ErrInvalidArgument
	}
	e, err := u.entitlements.Find(ctx, repository.NoTX, userID, toolID)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncAccessCheck("none")
		return model.AccessCheck{}, nil
	}
	if err != nil {
		metrics.IncAccessCheck("error")
		return model.AccessCheck{}, err
	}
	if !e.HasAccessAt(u.now()) {
		metrics.IncAccessCheck("denied")
		return model.AccessCheck{HasAccess: false, Entitlement: e}, nil
	}
	metrics.IncAccessCheck("granted")
	return model.AccessCheck{HasAccess: true, Entitlement: e}, nil
}

func (u *accessUC) Access(ctx context.Context, userID, toolID string) (*model.AccessGrant, error) {
	chk, err := u.HasAccess(ctx, userID, toolID)
	if err != nil {
		return nil, err
	}
	if !chk.HasAccess {
		return nil, domain.ErrNoAccess
	}
	tool, err := u.tools.FindByID(ctx, repository.NoTX, toolID)
	if err != nil {
		return nil, err
	}

	g := &model.AccessGrant{ToolID: toolID, ExpiresAt: chk.Entitlement.ExpiresAt}
	switch p := tool.Payload.(type) {
	case model.SingleToken:
		g.Kind, g.Token = p.Kind(), p.Token
	case model.TokenPool:
		tok, ok := p.Pick(userID)
		if !ok {
			return nil, domain.ErrTokenUnavailable
		}
		g.Kind, g.Token = p.Kind(), tok
	case model.Credentials:
		g.Kind, g.LoginID, g.Password = p.Kind(), p.ID, p.Password
	default:
		u.log.Warn().Str("tool_id", toolID).Msg("tool has no access material configured")
		return nil, domain.ErrTokenUnavailable
	}
	g.Payload = tool.Payload
	return g, nil
}

func (u *accessUC) ListEntitlements(ctx context.Context, userID string) ([]*model.Entitlement, []*model.PaymentRecord, error) {
	if userID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	ents, err := u.entitlements.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, nil, err
	}
	recs, err := u.records.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, nil, err
	}
	return ents, recs, nil
}

func (u *accessUC) Revoke(ctx context.Context, userID, toolID string) error {
	if userID == "" || toolID == "" {
		return domain.ErrInvalidArgument
	}
	if err := u.entitlements.Revoke(ctx, repository.NoTX, userID, toolID); err != nil {
		return err
	}
	u.log.Info().Str("user_id", userID).Str("tool_id", toolID).Msg("entitlement revoked")
	return nil
}
