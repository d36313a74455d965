// File: internal/usecase/import_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

// Compile-time check
var _ ImportUseCase = (*importUC)(nil)

// ImportReport counts what a legacy import did with each normalized grant.
type ImportReport struct {
	Records  int `json:"records"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"` // a later entitlement already exists
	Expired  int `json:"expired"`
	Invalid  int `json:"invalid"` // records that normalized to nothing
}

type ImportUseCase interface {
	Import(ctx context.Context, recs []model.LegacyRecord, now time.Time) (ImportReport, error)
}

type importUC struct {
	entitlements repository.EntitlementRepository
	log          *zerolog.Logger
}

func NewImportUseCase(ents repository.EntitlementRepository, logger *zerolog.Logger) *importUC {
	l := logger.With().Str("component", "legacy_import").Logger()
	return &importUC{entitlements: ents, log: &l}
}

func (u *importUC) Import(ctx context.Context, recs []model.LegacyRecord, now time.Time) (ImportReport, error) {
	rep := ImportReport{Records: len(recs)}
	for _, r := range recs {
		grants := r.Normalize()
		if len(grants) == 0 {
			rep.Invalid++
			continue
		}
		for _, g := range grants {
			if !now.Before(g.ExpiresAt) {
				rep.Expired++
				continue
			}
			wrote, err := u.entitlements.ImportLegacy(ctx, repository.NoTX, g)
			if err != nil {
				return rep, err
			}
			if !wrote {
				rep.Skipped++
				continue
			}
			rep.Imported++
			u.log.Debug().Str("user_id", g.UserID).Str("tool_id", g.ToolID).Str("source", g.SourceRef).Time("expires_at", g.ExpiresAt).Msg("legacy grant imported")
		}
	}
	u.log.Info().
		Int("records", rep.Records).
		Int("imported", rep.Imported).
		Int("skipped", rep.Skipped).
		Int("expired", rep.Expired).
		Int("invalid", rep.Invalid).
		Msg("legacy import finished")
	return rep, nil
}
