// Package currency converts order amounts for gateways that cannot settle
// the merchant's quoted currency. Rates are a static table; conversion
// accuracy is explicitly out of scope for the bridge.
package currency

import (
	"log"
	"strings"

	"github.com/shopspring/decimal"
)

var rates = map[string]map[string]string{
	"USD": {
		"ARS":  "350.50",
		"MXN":  "17.25",
		"CLP":  "900.00",
		"COP":  "4100.00",
		"USDT": "1.00",
	},
	"ARS": {
		"USD":  "0.002853",
		"USDT": "0.002853",
	},
	"MXN": {
		"USD":  "0.057971",
		"USDT": "0.057971",
	},
	"CLP": {
		"USD":  "0.001111",
		"USDT": "0.001111",
	},
	"COP": {
		"USD":  "0.000244",
		"USDT": "0.000244",
	},
}

// Converter resolves exchange rates and converts amounts between currencies.
type Converter struct{}

// NewConverter creates a converter backed by the static rate table.
func NewConverter() *Converter {
	return &Converter{}
}

// Rate returns the exchange rate from one currency to another. Identity for
// equal currencies; an unknown pair falls back to 1.0 with a warning.
func (c *Converter) Rate(from, to string) decimal.Decimal {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return decimal.NewFromInt(1)
	}
	if r, ok := rates[from][to]; ok {
		rate, err := decimal.NewFromString(r)
		if err == nil {
			return rate
		}
	}
	log.Printf("Warning: no exchange rate for %s -> %s, using 1.0", from, to)
	return decimal.NewFromInt(1)
}

// Convert converts amount from one currency to another, rounded to 2 places.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	return amount.Mul(c.Rate(from, to)).Round(2)
}

// Supported lists the currencies present in the rate table.
func (c *Converter) Supported() []string {
	return []string{"USD", "ARS", "MXN", "CLP", "COP", "USDT"}
}
