package apiv1

import "time"

// Wire types for /api/v1. Field names follow the storefront's camelCase JSON.

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type CallbackBody struct {
	Response string `json:"response"`
}

type CallbackAck struct {
	Status string `json:"status"` // SUCCESS | FAILED | PENDING
}

type PaymentStatusResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
	Amount        *int64 `json:"amount,omitempty"`
	Retryable     bool   `json:"retryable"`
	Message       string `json:"message"`
}

type ManualFixRequest struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	UserID                string `json:"userId,omitempty"`
	ToolID                string `json:"toolId,omitempty"`
}

type ManualFixResponse struct {
	PaymentStatusResponse
	Reason    string     `json:"reason"`
	Granted   bool       `json:"granted"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type GetAccessParams struct {
	UserId string `form:"userId" json:"userId"` // optional, must match the token subject
	ToolId string `form:"toolId" json:"toolId"`
}

type AccessResponse struct {
	HasAccess bool        `json:"hasAccess"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	Access    *AccessInfo `json:"access,omitempty"`
	Message   string      `json:"message,omitempty"`
}

type AccessInfo struct {
	Kind     string `json:"kind"`
	Token    string `json:"token,omitempty"`
	LoginID  string `json:"loginId,omitempty"`
	Password string `json:"password,omitempty"`
}

type CheckoutRequest struct {
	UserID string `json:"userId,omitempty"` // optional, must match the token subject
	ToolID string `json:"toolId"`
}

type CheckoutResponse struct {
	OrderID     string `json:"orderId"`
	CheckoutURL string `json:"checkoutUrl"`
	Amount      int64  `json:"amount"`
}

// Tool is the public catalog view; access material is never listed.
type Tool struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PriceMinor   int64     `json:"priceMinor"`
	ValidityDays int       `json:"validityDays"`
	Active       bool      `json:"active"`
	TokenKind    string    `json:"tokenKind,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type UpsertToolRequest struct {
	Name         string   `json:"name"`
	PriceMinor   int64    `json:"priceMinor"`
	ValidityDays int      `json:"validityDays"`
	Active       *bool    `json:"active,omitempty"`
	TokenKind    string   `json:"tokenKind,omitempty"`
	Token        string   `json:"token,omitempty"`
	Tokens       []string `json:"tokens,omitempty"`
	LoginID      string   `json:"loginId,omitempty"`
	Password     string   `json:"password,omitempty"`
}

type Entitlement struct {
	ToolID        string    `json:"toolId"`
	Active        bool      `json:"active"`
	HasAccess     bool      `json:"hasAccess"`
	GrantedAt     time.Time `json:"grantedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	SourceOrderID string    `json:"sourceOrderId"`
}

type PaymentRecord struct {
	OrderID              string    `json:"orderId"`
	ToolID               string    `json:"toolId"`
	GatewayTransactionID string    `json:"gatewayTransactionId,omitempty"`
	Amount               int64     `json:"amount"`
	CompletedAt          time.Time `json:"completedAt"`
}

type UserEntitlementsResponse struct {
	UserID       string          `json:"userId"`
	Entitlements []Entitlement   `json:"entitlements"`
	Payments     []PaymentRecord `json:"payments"`
}

type SessionRequest struct {
	APIKey string `json:"apiKey"`
}

type SessionResponse struct {
	Token string `json:"token"`
}

type StatsResponse struct {
	RevenueDay   int64 `json:"revenueDay"`
	RevenueMonth int64 `json:"revenueMonth"`
}
