package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code accepted by the marketplace.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencyJPY Currency = "JPY"
	CurrencyINR Currency = "INR"
)

// SettlementCurrency is what PayPal orders are denominated in, whatever the buyer sees.
const SettlementCurrency = CurrencyUSD

// usdRates is the fixed display-to-USD table. Not a real FX source.
var usdRates = map[Currency]decimal.Decimal{
	CurrencyUSD: decimal.NewFromInt(1),
	CurrencyEUR: decimal.RequireFromString("1.08"),
	CurrencyGBP: decimal.RequireFromString("1.27"),
	CurrencyCAD: decimal.RequireFromString("0.74"),
	CurrencyAUD: decimal.RequireFromString("0.66"),
	CurrencyJPY: decimal.RequireFromString("0.0067"),
	CurrencyINR: decimal.RequireFromString("0.012"),
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := usdRates[c]; !ok {
		return "", NewInvalidCurrencyError(s)
	}
	return c, nil
}

// Market is the buyer's region. It selects the fee schedule.
type Market string

const (
	MarketUS Market = "US"
	MarketGB Market = "GB"
	MarketEU Market = "EU"
	MarketCA Market = "CA"
	MarketAU Market = "AU"
	MarketIN Market = "IN"
	MarketJP Market = "JP"
)

// DefaultMarket is used when the caller does not name one, and as the fee fallback.
const DefaultMarket = MarketUS

var markets = []Market{MarketUS, MarketGB, MarketEU, MarketCA, MarketAU, MarketIN, MarketJP}

func ParseMarket(s string) (Market, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultMarket, nil
	}
	m := Market(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range markets {
		if m == known {
			return m, nil
		}
	}
	return "", NewInvalidMarketError(s)
}

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodPayPal       PaymentMethod = "paypal"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodApplePay     PaymentMethod = "apple_pay"
	MethodGooglePay    PaymentMethod = "google_pay"
)

var methods = []PaymentMethod{MethodCard, MethodPayPal, MethodBankTransfer, MethodApplePay, MethodGooglePay}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range methods {
		if m == known {
			return m, nil
		}
	}
	return "", NewInvalidPaymentMethodError(s)
}

// Gateway identifies the processor that handled a payment.
type Gateway string

const (
	GatewayPayPal        Gateway = "paypal"
	GatewayCardSimulator Gateway = "card_simulator"
)

// Round2 quantizes to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidateAmount rejects non-positive amounts and amounts with sub-cent precision.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(Round2(amount)) {
		return NewInvalidAmountError(amount)
	}
	return nil
}

// ConvertToSettlement converts an amount in the buyer's currency into SettlementCurrency.
func ConvertToSettlement(amount decimal.Decimal, from Currency) (decimal.Decimal, error) {
	rate, ok := usdRates[from]
	if !ok {
		return decimal.Zero, NewInvalidCurrencyError(string(from))
	}
	return Round2(amount.Mul(rate)), nil
}

// VATRate is applied to the subtotal when a pricing breakdown is recomputed.
var VATRate = decimal.RequireFromString("0.20")

// Breakdown is the optional pricing detail behind a payment amount.
type Breakdown struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
}

// Tax returns the VAT owed on the subtotal.
func (b Breakdown) Tax() decimal.Decimal {
	return Round2(b.Subtotal.Mul(VATRate))
}

// Total returns round2(subtotal*(1+VAT) + shipping - discount).
func (b Breakdown) Total() decimal.Decimal {
	gross := b.Subtotal.Mul(decimal.NewFromInt(1).Add(VATRate))
	return Round2(gross.Add(b.Shipping).Sub(b.Discount))
}

func (b Breakdown) Validate() error {
	if b.Subtotal.IsNegative() || b.Shipping.IsNegative() || b.Discount.IsNegative() {
		return NewValidationError("breakdown components must not be negative")
	}
	return nil
}

// LineItem is a snapshot of a purchased product.
type LineItem struct {
	ProductID string          `json:"productId" validate:"required"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (i LineItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
