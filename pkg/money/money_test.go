package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewCurrency_Valid(t *testing.T) {
	tests := []struct {
		code  string
		scale int32
	}{
		{"USD", 2},
		{"EUR", 2},
		{"JPY", 0},
		{"KWD", 3},
		{"KES", 2},
	}
	for _, tt := range tests {
		c, err := NewCurrency(tt.code)
		if err != nil {
			t.Errorf("NewCurrency(%q) unexpected error: %v", tt.code, err)
			continue
		}
		if c.Code() != tt.code {
			t.Errorf("NewCurrency(%q).Code() = %q", tt.code, c.Code())
		}
		if c.Scale() != tt.scale {
			t.Errorf("NewCurrency(%q).Scale() = %d, want %d", tt.code, c.Scale(), tt.scale)
		}
	}
}

func TestNewCurrency_Invalid(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"lowercase", "usd"},
		{"too short", "US"},
		{"too long", "USDD"},
		{"digits", "US1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCurrency(tt.code); err == nil {
				t.Errorf("NewCurrency(%q) expected error, got nil", tt.code)
			}
		})
	}
}

func TestMustCurrency_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustCurrency(\"bad\") did not panic")
		}
	}()
	MustCurrency("bad")
}

func TestCurrency_Round(t *testing.T) {
	tests := []struct {
		name     string
		currency Currency
		in       string
		want     string
	}{
		{"usd half up", USD, "10.005", "10.01"},
		{"usd down", USD, "10.004", "10"},
		{"usd negative", USD, "-10.005", "-10.01"},
		{"jpy", JPY, "1500.5", "1501"},
		{"kwd", MustCurrency("KWD"), "1.23456", "1.235"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.currency.Round(decimal.RequireFromString(tt.in))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Round(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestCurrency_Floor(t *testing.T) {
	got := USD.Floor(decimal.RequireFromString("33.339"))
	if !got.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("Floor = %s, want 33.33", got)
	}
}

func TestCurrency_Fits(t *testing.T) {
	if !USD.Fits(decimal.RequireFromString("12.30")) {
		t.Error("12.30 should fit USD")
	}
	if USD.Fits(decimal.RequireFromString("12.301")) {
		t.Error("12.301 should not fit USD")
	}
	if JPY.Fits(decimal.RequireFromString("1.5")) {
		t.Error("1.5 should not fit JPY")
	}
}

func TestCurrency_MinorUnitAndFormat(t *testing.T) {
	if !USD.MinorUnit().Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("USD minor unit = %s", USD.MinorUnit())
	}
	if !JPY.MinorUnit().Equal(decimal.NewFromInt(1)) {
		t.Errorf("JPY minor unit = %s", JPY.MinorUnit())
	}
	if got := USD.Format(decimal.NewFromInt(1200)); got != "1200.00 USD" {
		t.Errorf("Format = %q", got)
	}
}
