package chain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToRawFromRaw(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		raw      string
	}{
		{"1.5", 18, "1500000000000000000"},
		{"2500.123456", 6, "2500123456"},
		{"0.0000001", 6, "0"},
		{"42", 0, "42"},
	}
	for _, c := range cases {
		got := ToRaw(decimal.RequireFromString(c.amount), c.decimals)
		if got.String() != c.raw {
			t.Fatalf("ToRaw(%s, %d) = %s, want %s", c.amount, c.decimals, got, c.raw)
		}
	}

	back := FromRaw(big.NewInt(2500123456), 6)
	if !back.Equal(decimal.RequireFromString("2500.123456")) {
		t.Fatalf("FromRaw mismatch: %s", back)
	}
	if !FromRaw(nil, 6).IsZero() {
		t.Fatalf("FromRaw(nil) should be zero")
	}
	if ToRaw(decimal.NewFromInt(-1), 6).Sign() != 0 {
		t.Fatalf("negative amount should clamp to zero")
	}
}

func TestParseRaw(t *testing.T) {
	if ParseRaw("12345").Int64() != 12345 {
		t.Fatalf("ParseRaw mismatch")
	}
	if ParseRaw("nope").Sign() != 0 {
		t.Fatalf("invalid input should parse to zero")
	}
}
