//go:build !integration

package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"rankblaze-entitlements/internal/domain"
)

// --- Order Model Tests ---

func TestNewOrder(t *testing.T) {
	t.Run("should create a CREATED order with a composite id", func(t *testing.T) {
		o, err := NewOrder("u1", "toolA", 349)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if o.Status != OrderStatusCreated {
			t.Errorf("expected CREATED, got %s", o.Status)
		}
		if !strings.HasPrefix(o.ID, "ord_u1_toolA_") {
			t.Errorf("unexpected order id %q", o.ID)
		}
		u, tool, ok := ParseOrderID(o.ID)
		if !ok || u != "u1" || tool != "toolA" {
			t.Errorf("id does not round-trip: %q %q %v", u, tool, ok)
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		cases := map[string]struct {
			user, tool string
			amount     int64
		}{
			"empty user":        {"", "toolA", 1},
			"empty tool":        {"u1", "", 1},
			"zero amount":       {"u1", "toolA", 0},
			"separator in user": {"u_1", "toolA", 1},
			"separator in tool": {"u1", "tool_A", 1},
		}
		for name, c := range cases {
			t.Run(name, func(t *testing.T) {
				o, err := NewOrder(c.user, c.tool, c.amount)
				if o != nil || !errors.Is(err, domain.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			})
		}
	})
}

func TestParseOrderID(t *testing.T) {
	for _, id := range []string{"", "ord_u1_toolA", "pay_u1_toolA_X", "ord_u1__X", "ord_u1_toolA_X_extra"} {
		if _, _, ok := ParseOrderID(id); ok {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusCreated, OrderStatusInitiated}:   true,
		{OrderStatusInitiated, OrderStatusCompleted}: true,
		{OrderStatusInitiated, OrderStatusFailed}:    true,
	}
	all := []OrderStatus{OrderStatusCreated, OrderStatusInitiated, OrderStatusCompleted, OrderStatusFailed}
	for _, from := range all {
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != allowed[[2]OrderStatus{from, to}] {
				t.Errorf("%s -> %s: got %v", from, to, got)
			}
		}
	}
	if !OrderStatusCompleted.IsTerminal() || !OrderStatusFailed.IsTerminal() || OrderStatusInitiated.IsTerminal() {
		t.Error("terminal set is wrong")
	}
}

// --- Entitlement Model Tests ---

func TestEntitlement(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("should grant for the validity window", func(t *testing.T) {
		e, err := NewEntitlement("u1", "toolA", "ord_u1_toolA_1", now, DefaultValidity)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !e.ExpiresAt.Equal(now.Add(30 * 24 * time.Hour)) {
			t.Errorf("unexpected expiry %v", e.ExpiresAt)
		}
		if !e.HasAccessAt(now) || e.HasAccessAt(e.ExpiresAt) {
			t.Error("access must hold strictly before expiry")
		}
		if !e.IsCurrentGrantFrom("ord_u1_toolA_1", now) || e.IsCurrentGrantFrom("ord_u1_toolA_2", now) {
			t.Error("current grant check is wrong")
		}
	})

	t.Run("revoked entitlement has no access", func(t *testing.T) {
		e, _ := NewEntitlement("u1", "toolA", "o", now, time.Hour)
		e.Active = false
		if e.HasAccessAt(now) {
			t.Error("inactive entitlement granted access")
		}
		var nilEnt *Entitlement
		if nilEnt.HasAccessAt(now) {
			t.Error("nil entitlement granted access")
		}
	})

	t.Run("should reject a non-positive window", func(t *testing.T) {
		if _, err := NewEntitlement("u1", "toolA", "o", now, 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

// --- Tool Model Tests ---

func TestTool(t *testing.T) {
	t.Run("should validate catalog entries", func(t *testing.T) {
		if _, err := NewTool("tool_A", "A", 1, 0, nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Error("separator in tool id accepted")
		}
		if _, err := NewTool("toolA", "A", 1, 0, TokenPool{Tokens: []string{"a", ""}}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Error("empty pool token accepted")
		}
		tool, err := NewTool("toolA", " A ", 1, 0, nil)
		if err != nil || tool.Name != "A" || !tool.Active {
			t.Fatalf("unexpected tool %+v, %v", tool, err)
		}
		if tool.Validity(time.Hour) != time.Hour {
			t.Error("expected fallback validity")
		}
		tool.ValidityDays = 7
		if tool.Validity(time.Hour) != 7*24*time.Hour {
			t.Error("expected tool validity")
		}
	})

	t.Run("pool pick is stable per user", func(t *testing.T) {
		p := TokenPool{Tokens: []string{"a", "b", "c"}}
		first, ok := p.Pick("u1")
		if !ok {
			t.Fatal("expected a token")
		}
		for i := 0; i < 5; i++ {
			if got, _ := p.Pick("u1"); got != first {
				t.Fatalf("pick changed: %q vs %q", got, first)
			}
		}
		if _, ok := (TokenPool{}).Pick("u1"); ok {
			t.Error("empty pool returned a token")
		}
	})

	t.Run("token payload codec", func(t *testing.T) {
		for _, p := range []TokenPayload{SingleToken{Token: "t"}, TokenPool{Tokens: []string{"a"}}, Credentials{ID: "i", Password: "p"}} {
			kind, raw, err := MarshalTokenPayload(p)
			if err != nil {
				t.Fatalf("marshal %T: %v", p, err)
			}
			back, err := UnmarshalTokenPayload(kind, raw)
			if err != nil || back.Kind() != p.Kind() {
				t.Errorf("%T: got %#v, %v", p, back, err)
			}
		}
		if _, err := UnmarshalTokenPayload(TokenKindSingle, []byte(`{}`)); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("empty single token decoded: %v", err)
		}
	})
}

// --- Legacy Record Tests ---

func TestLegacyRecordNormalize(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	no := false

	cases := []struct {
		name string
		rec  LegacyRecord
		want []string // user/tool pairs
	}{
		{"document key", LegacyRecord{Shape: LegacyShapeDocument, Key: "u1_toolA", StartDate: start, EndDate: end}, []string{"u1/toolA"}},
		{"tree node", LegacyRecord{Shape: LegacyShapeTree, Key: "-N1", UserID: "u2", ToolID: "toolB", StartDate: start, EndDate: end}, []string{"u2/toolB"}},
		{"subscription dedups tools", LegacyRecord{Shape: LegacyShapeSubscription, UserID: "u3", Tools: []string{"a", " a ", "", "b"}, StartDate: start, EndDate: end}, []string{"u3/a", "u3/b"}},
		{"inactive", LegacyRecord{Shape: LegacyShapeTree, UserID: "u2", ToolID: "t", Active: &no, StartDate: start, EndDate: end}, nil},
		{"inverted window", LegacyRecord{Shape: LegacyShapeTree, UserID: "u2", ToolID: "t", StartDate: end, EndDate: start}, nil},
		{"unknown shape", LegacyRecord{Shape: "csv", UserID: "u2", ToolID: "t", StartDate: start, EndDate: end}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := c.rec.Normalize()
			if len(got) != len(c.want) {
				t.Fatalf("want %d grants, got %d", len(c.want), len(got))
			}
			for i, g := range got {
				if g.UserID+"/"+g.ToolID != c.want[i] {
					t.Errorf("grant %d: got %s/%s", i, g.UserID, g.ToolID)
				}
				if !strings.HasPrefix(g.SourceRef, "legacy:"+string(c.rec.Shape)+":") || !g.ExpiresAt.Equal(end) {
					t.Errorf("grant %d: unexpected %+v", i, g)
				}
			}
		})
	}
}
