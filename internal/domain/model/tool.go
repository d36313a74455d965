package model

import (
	"hash/fnv"
	"strings"
	"time"

	"rankblaze-entitlements/internal/domain"
)

// TokenKind is the per-tool capability declaration that decides which
// TokenPayload variant a tool hands out.
type TokenKind string

const (
	TokenKindSingle      TokenKind = "single"
	TokenKindPool        TokenKind = "pool"
	TokenKindCredentials TokenKind = "credentials"
)

func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindSingle, TokenKindPool, TokenKindCredentials:
		return true
	}
	return false
}

// TokenPayload is the access material for a tool. Exactly one of the
// SingleToken, TokenPool and Credentials types implements it.
type TokenPayload interface {
	Kind() TokenKind
	isTokenPayload()
}

type SingleToken struct {
	Token string
}

type TokenPool struct {
	Tokens []string
}

type Credentials struct {
	ID       string
	Password string
}

func (SingleToken) Kind() TokenKind { return TokenKindSingle }
func (TokenPool) Kind() TokenKind   { return TokenKindPool }
func (Credentials) Kind() TokenKind { return TokenKindCredentials }

func (SingleToken) isTokenPayload() {}
func (TokenPool) isTokenPayload()   {}
func (Credentials) isTokenPayload() {}

// Pick returns the pool token assigned to userID. The same user always lands
// on the same token while the pool is unchanged.
func (p TokenPool) Pick(userID string) (string, bool) {
	if len(p.Tokens) == 0 {
		return "", false
	}
	h := fnv.New32a()
	h.Write([]byte(userID))
	return p.Tokens[int(h.Sum32()%uint32(len(p.Tokens)))], true
}

// Tool is a purchasable catalog entry.
type Tool struct {
	ID           string
	Name         string
	PriceMinor   int64
	ValidityDays int
	Active       bool
	Payload      TokenPayload // nil until an admin configures access material
	UpdatedAt    time.Time
}

// NewTool validates and constructs a catalog entry.
func NewTool(id, name string, priceMinor int64, validityDays int, payload TokenPayload) (*Tool, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "_") || strings.TrimSpace(name) == "" || priceMinor <= 0 || validityDays < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}
	return &Tool{
		ID:           id,
		Name:         strings.TrimSpace(name),
		PriceMinor:   priceMinor,
		ValidityDays: validityDays,
		Active:       true,
		Payload:      payload,
		UpdatedAt:    time.Now(),
	}, nil
}

// Validity returns the tool-specific window, falling back to def.
func (t *Tool) Validity(def time.Duration) time.Duration {
	if t.ValidityDays > 0 {
		return time.Duration(t.ValidityDays) * 24 * time.Hour
	}
	return def
}

// ValidatePayload rejects empty variants. A nil payload is allowed.
func ValidatePayload(p TokenPayload) error {
	switch v := p.(type) {
	case nil:
		return nil
	case SingleToken:
		if v.Token == "" {
			return domain.ErrInvalidArgument
		}
	case TokenPool:
		if len(v.Tokens) == 0 {
			return domain.ErrInvalidArgument
		}
		for _, t := range v.Tokens {
			if t == "" {
				return domain.ErrInvalidArgument
			}
		}
	case Credentials:
		if v.ID == "" || v.Password == "" {
			return domain.ErrInvalidArgument
		}
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

// AccessGrant is what the tool-access page receives for a user with access.
type AccessGrant struct {
	ToolID    string       `json:"toolId"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Kind      TokenKind    `json:"kind,omitempty"`
	Token     string       `json:"token,omitempty"`
	LoginID   string       `json:"loginId,omitempty"`
	Password  string       `json:"password,omitempty"`
	Payload   TokenPayload `json:"-"`
}
