package model

import (
	"encoding/json"
	"fmt"

	"rankblaze-entitlements/internal/domain"
)

type tokenDoc struct {
	Token    string   `json:"token,omitempty"`
	Tokens   []string `json:"tokens,omitempty"`
	ID       string   `json:"id,omitempty"`
	Password string   `json:"password,omitempty"`
}

// MarshalTokenPayload encodes p for storage. The kind is stored alongside it.
func MarshalTokenPayload(p TokenPayload) (TokenKind, []byte, error) {
	var d tokenDoc
	switch v := p.(type) {
	case nil:
		return "", nil, nil
	case SingleToken:
		d.Token = v.Token
	case TokenPool:
		d.Tokens = v.Tokens
	case Credentials:
		d.ID, d.Password = v.ID, v.Password
	default:
		return "", nil, domain.ErrInvalidArgument
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", nil, err
	}
	return p.Kind(), b, nil
}

// UnmarshalTokenPayload is the inverse of MarshalTokenPayload.
func UnmarshalTokenPayload(kind TokenKind, b []byte) (TokenPayload, error) {
	if kind == "" || len(b) == 0 {
		return nil, nil
	}
	var d tokenDoc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}
	var p TokenPayload
	switch kind {
	case TokenKindSingle:
		p = SingleToken{Token: d.Token}
	case TokenKindPool:
		p = TokenPool{Tokens: d.Tokens}
	case TokenKindCredentials:
		p = Credentials{ID: d.ID, Password: d.Password}
	default:
		return nil, domain.ErrInvalidArgument
	}
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}
	return p, nil
}
