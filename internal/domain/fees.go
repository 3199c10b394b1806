package domain

import "github.com/shopspring/decimal"

// Fee is the processor fee charged on a payment. Percentage is in percent (2.9 means 2.9%).
type Fee struct {
	Percentage decimal.Decimal `json:"percentage"`
	Fixed      decimal.Decimal `json:"fixed"`
	Total      decimal.Decimal `json:"total"`
}

type feeRate struct {
	percentage decimal.Decimal
	fixed      decimal.Decimal
}

func rate(percentage, fixed string) feeRate {
	return feeRate{
		percentage: decimal.RequireFromString(percentage),
		fixed:      decimal.RequireFromString(fixed),
	}
}

// defaultFeeRate applies when a method is not listed for the resolved market.
var defaultFeeRate = rate("2.9", "0.30")

var feeSchedule = map[Market]map[PaymentMethod]feeRate{
	MarketUS: {
		MethodCard:   rate("2.9", "0.30"),
		MethodPayPal: rate("3.49", "0.49"),
	},
	MarketGB: {
		MethodCard:   rate("2.9", "0.30"),
		MethodPayPal: rate("3.4", "0.30"),
	},
	MarketEU: {
		MethodCard:   rate("1.4", "0.25"),
		MethodPayPal: rate("3.4", "0.35"),
	},
	MarketCA: {
		MethodCard:   rate("2.9", "0.30"),
		MethodPayPal: rate("2.9", "0.30"),
	},
	MarketAU: {
		MethodCard:   rate("1.75", "0.30"),
		MethodPayPal: rate("2.6", "0.30"),
	},
}

var hundred = decimal.NewFromInt(100)

// ComputeFee looks up the market table (falling back to DefaultMarket), then the method
// (falling back to 2.9% + 0.30), and returns total = round2(amount*pct/100 + fixed).
func ComputeFee(amount decimal.Decimal, method PaymentMethod, market Market) Fee {
	table, ok := feeSchedule[market]
	if !ok {
		table = feeSchedule[DefaultMarket]
	}
	r, ok := table[method]
	if !ok {
		r = defaultFeeRate
	}

	total := Round2(amount.Mul(r.percentage).Div(hundred).Add(r.fixed))
	return Fee{
		Percentage: r.percentage,
		Fixed:      r.fixed,
		Total:      total,
	}
}
