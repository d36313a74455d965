package model

import (
	"time"

	"rankblaze-entitlements/internal/domain"
)

// DefaultValidity is the access window granted per successful order.
const DefaultValidity = 30 * 24 * time.Hour

// Entitlement is the single source of truth for "may this user use this tool".
// There is at most one row per (UserID, ToolID).
type Entitlement struct {
	UserID        string
	ToolID        string
	Active        bool
	GrantedAt     time.Time
	ExpiresAt     time.Time
	SourceOrderID string
	UpdatedAt     time.Time
}

// NewEntitlement builds a fresh active grant sourced from orderID.
func NewEntitlement(userID, toolID, orderID string, grantedAt time.Time, validity time.Duration) (*Entitlement, error) {
	if userID == "" || toolID == "" || orderID == "" || validity <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Entitlement{
		UserID:        userID,
		ToolID:        toolID,
		Active:        true,
		GrantedAt:     grantedAt,
		ExpiresAt:     grantedAt.Add(validity),
		SourceOrderID: orderID,
		UpdatedAt:     grantedAt,
	}, nil
}

// HasAccessAt is active AND now < expiresAt.
func (e *Entitlement) HasAccessAt(now time.Time) bool {
	return e != nil && e.Active && now.Before(e.ExpiresAt)
}

// IsCurrentGrantFrom reports whether e is an active, unexpired grant already
// sourced from orderID; re-granting it must be a no-op.
func (e *Entitlement) IsCurrentGrantFrom(orderID string, now time.Time) bool {
	return e.HasAccessAt(now) && e.SourceOrderID == orderID
}

// AccessCheck is the read-path answer.
type AccessCheck struct {
	HasAccess   bool
	Entitlement *Entitlement
}
