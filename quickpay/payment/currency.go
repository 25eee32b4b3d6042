package payment

import "github.com/shopspring/decimal"

// minorUnits maps supported ISO 4217 codes to their minor-unit exponent.
var minorUnits = map[string]int32{
	"GBP": 2,
	"EUR": 2,
	"PLN": 2,
	"NOK": 2,
	"SEK": 2,
	"DKK": 2,
	"CZK": 2,
}

func CurrencySupported(code string) bool {
	_, ok := minorUnits[code]
	return ok
}

// FormatMinor renders an amount in minor units as a decimal major-unit
// string, e.g. 100 EUR minor -> "1.00". Unsupported codes fall back to
// exponent 2.
func FormatMinor(amount int64, currency string) string {
	exp, ok := minorUnits[currency]
	if !ok {
		exp = 2
	}
	return decimal.New(amount, -exp).StringFixed(exp)
}
