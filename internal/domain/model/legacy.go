package model

import (
	"strings"
	"time"
)

// LegacyShape names the historical storage layouts entitlements were kept in
// before the single entitlements table.
type LegacyShape string

const (
	LegacyShapeDocument     LegacyShape = "document"     // document keyed "<userId>_<toolId>"
	LegacyShapeTree         LegacyShape = "tree"         // realtime tree node under a push id
	LegacyShapeSubscription LegacyShape = "subscription" // subscription with a tools array
)

// LegacyRecord is one raw row of a historical export. Only the fields for its
// Shape are populated.
type LegacyRecord struct {
	Shape     LegacyShape `json:"shape"`
	Key       string      `json:"key"` // document id or push id
	UserID    string      `json:"userId"`
	ToolID    string      `json:"toolId"`
	Tools     []string    `json:"tools"`
	Active    *bool       `json:"active"`
	StartDate time.Time   `json:"startDate"`
	EndDate   time.Time   `json:"endDate"`
}

// LegacyGrant is a normalized historical grant ready for a one-time import.
type LegacyGrant struct {
	UserID    string
	ToolID    string
	GrantedAt time.Time
	ExpiresAt time.Time
	SourceRef string // "legacy:<shape>:<key>"
}

// Normalize flattens a record into zero or more grants. Inactive records and
// records with an unusable window yield nothing.
func (r LegacyRecord) Normalize() []LegacyGrant {
	if r.Active != nil && !*r.Active {
		return nil
	}
	if r.StartDate.IsZero() || !r.EndDate.After(r.StartDate) {
		return nil
	}
	src := "legacy:" + string(r.Shape) + ":" + r.Key
	one := func(userID, toolID string) LegacyGrant {
		return LegacyGrant{UserID: userID, ToolID: toolID, GrantedAt: r.StartDate, ExpiresAt: r.EndDate, SourceRef: src}
	}

	switch r.Shape {
	case LegacyShapeDocument:
		userID, toolID := r.UserID, r.ToolID
		if userID == "" || toolID == "" {
			if i := strings.Index(r.Key, "_"); i > 0 && i < len(r.Key)-1 {
				userID, toolID = r.Key[:i], r.Key[i+1:]
			}
		}
		if userID == "" || toolID == "" {
			return nil
		}
		return []LegacyGrant{one(userID, toolID)}
	case LegacyShapeTree:
		if r.UserID == "" || r.ToolID == "" {
			return nil
		}
		return []LegacyGrant{one(r.UserID, r.ToolID)}
	case LegacyShapeSubscription:
		if r.UserID == "" {
			return nil
		}
		out := make([]LegacyGrant, 0, len(r.Tools))
		seen := map[string]struct{}{}
		for _, t := range r.Tools {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, one(r.UserID, t))
		}
		return out
	}
	return nil
}
