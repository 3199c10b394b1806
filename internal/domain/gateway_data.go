package domain

import "github.com/shopspring/decimal"

// GatewayData holds processor-specific details. Implemented by *PayPalData and *CardData.
type GatewayData interface {
	Gateway() Gateway
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type PayerInfo struct {
	PayerID   string `json:"payerId,omitempty"`
	Email     string `json:"email,omitempty"`
	GivenName string `json:"givenName,omitempty"`
	Surname   string `json:"surname,omitempty"`
}

// PayPalData keeps the buyer-facing amount next to what PayPal actually settles.
type PayPalData struct {
	OriginalAmount     decimal.Decimal `json:"originalAmount"`
	OriginalCurrency   Currency        `json:"originalCurrency"`
	SettlementAmount   decimal.Decimal `json:"settlementAmount"`
	SettlementCurrency Currency        `json:"settlementCurrency"`
	ApprovalURL        string          `json:"approvalUrl,omitempty"`
	Links              []Link          `json:"links,omitempty"`
	Payer              *PayerInfo      `json:"payer,omitempty"`
	CaptureID          string          `json:"captureId,omitempty"`
}

func (*PayPalData) Gateway() Gateway { return GatewayPayPal }

type BillingAddress struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
}

// CardData never carries the full card number.
type CardData struct {
	Last4             string         `json:"last4"`
	Brand             string         `json:"brand"`
	AuthorizationCode string         `json:"authorizationCode,omitempty"`
	BillingAddress    BillingAddress `json:"billingAddress"`
}

func (*CardData) Gateway() Gateway { return GatewayCardSimulator }

// ApprovalLink returns the link the buyer must follow to approve a PayPal order.
func ApprovalLink(links []Link) (string, bool) {
	for _, l := range links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href, true
		}
	}
	return "", false
}
