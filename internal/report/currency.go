// Package report formats amounts for display.
package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

type currencyStyle struct {
	symbol   string
	decimals int
}

var styles = map[string]currencyStyle{
	"TWD": {symbol: "NT$", decimals: 0},
	"USD": {symbol: "$", decimals: 2},
	"EUR": {symbol: "€", decimals: 2},
	"JPY": {symbol: "¥", decimals: 0},
	"GBP": {symbol: "£", decimals: 2},
	"CNY": {symbol: "¥", decimals: 2},
}

// DefaultCurrency is used when no currency code is given.
const DefaultCurrency = "TWD"

// styleFor returns the display style of code. Unknown codes print the code
// followed by a space, with unknownDecimals fraction digits.
func styleFor(code string, unknownDecimals int) currencyStyle {
	if code == "" {
		code = DefaultCurrency
	}
	if s, ok := styles[code]; ok {
		return s
	}
	return currencyStyle{symbol: code + " ", decimals: unknownDecimals}
}

// grouped renders abs with thousand separators and exactly decimals fraction
// digits, rounding half away from zero. The symbol is left to the caller.
func grouped(abs decimal.Decimal, decimals int) string {
	minor := abs.Round(int32(decimals)).Shift(int32(decimals)).IntPart()
	return money.NewFormatter(decimals, ".", ",", "", "1").Format(minor)
}

func sign(amount float64) string {
	if amount < 0 {
		return "-"
	}
	return ""
}

// FormatCurrency renders amount with the currency symbol and thousand
// separators, e.g. NT$1,234 or -$42.13.
func FormatCurrency(amount float64, code string) string {
	s := styleFor(code, 2)
	abs := decimal.NewFromFloat(amount).Abs()
	return sign(amount) + s.symbol + grouped(abs, s.decimals)
}

var (
	million  = decimal.NewFromInt(1_000_000)
	tenK     = decimal.NewFromInt(10_000)
	thousand = decimal.NewFromInt(1_000)
)

// FormatCompact renders amount in short form: 1.2M from a million up, 45K
// from ten thousand up, the full figure below that.
func FormatCompact(amount float64, code string) string {
	s := styleFor(code, 0)
	abs := decimal.NewFromFloat(amount).Abs()
	var compact string
	switch {
	case abs.GreaterThanOrEqual(million):
		compact = abs.Div(million).StringFixed(1) + "M"
	case abs.GreaterThanOrEqual(tenK):
		compact = abs.Div(thousand).StringFixed(0) + "K"
	default:
		compact = grouped(abs, s.decimals)
	}
	return sign(amount) + s.symbol + compact
}
