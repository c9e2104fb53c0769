package money

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// minorUnits lists ISO 4217 currencies whose minor unit differs from 2.
var minorUnits = map[string]int32{
	"BHD": 3,
	"CLP": 0,
	"IQD": 3,
	"ISK": 0,
	"JOD": 3,
	"JPY": 0,
	"KRW": 0,
	"KWD": 3,
	"LYD": 3,
	"OMR": 3,
	"PYG": 0,
	"RWF": 0,
	"TND": 3,
	"UGX": 0,
	"VND": 0,
	"XAF": 0,
	"XOF": 0,
}

// Currency is an ISO 4217 currency code together with its minor-unit precision.
type Currency struct {
	code  string
	scale int32
}

// NewCurrency creates a Currency after validating the code is exactly 3 uppercase letters.
func NewCurrency(code string) (Currency, error) {
	if !currencyCodeRe.MatchString(code) {
		return Currency{}, fmt.Errorf("invalid currency code %q: must be exactly 3 uppercase letters", code)
	}
	scale, ok := minorUnits[code]
	if !ok {
		scale = 2
	}
	return Currency{code: code, scale: scale}, nil
}

// MustCurrency creates a Currency and panics on error. Intended for package-level variable
// initialization only.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Common currencies.
var (
	USD = MustCurrency("USD")
	EUR = MustCurrency("EUR")
	GBP = MustCurrency("GBP")
	JPY = MustCurrency("JPY")
)

// Code returns the ISO 4217 currency code.
func (c Currency) Code() string { return c.code }

// String returns the currency code.
func (c Currency) String() string { return c.code }

// IsZero reports whether the currency was never initialised.
func (c Currency) IsZero() bool { return c.code == "" }

// Scale returns the number of decimal places of the currency's minor unit.
func (c Currency) Scale() int32 { return c.scale }

// MinorUnit returns the smallest representable amount, e.g. 0.01 for USD.
func (c Currency) MinorUnit() decimal.Decimal {
	return decimal.New(1, -c.scale)
}

// Round rounds half away from zero to the currency's minor unit.
func (c Currency) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.scale)
}

// Floor rounds down to the currency's minor unit.
func (c Currency) Floor(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(c.scale)
}

// Fits reports whether d is already expressed in whole minor units.
func (c Currency) Fits(d decimal.Decimal) bool {
	return d.Equal(d.Round(c.scale))
}

// Format renders d with exactly the currency's number of decimal places,
// for example "1200.00 USD".
func (c Currency) Format(d decimal.Decimal) string {
	return fmt.Sprintf("%s %s", d.StringFixed(c.scale), c.code)
}
