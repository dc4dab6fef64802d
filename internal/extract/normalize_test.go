package extract

import (
	"errors"
	"testing"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"29,99 zł", 29.99},
		{"29.99,", 29.99},
		{"1 234,56 zł", 1234.56},
		{"1.234,56 zł", 1234.56},
		{"1 234.56$", 1234.56},
		{"$1,234.56", 1234.56},
		{"1 234,56 PLN", 1234.56},
		{"K-Beauty 2.0", 2.0},
		{"  49.99 EUR ", 49.99},
		{"-12,50 zł", -12.50},
		{"123", 123},
	}
	for _, c := range cases {
		got, err := ParsePrice(c.in)
		if err != nil {
			t.Fatalf("ParsePrice(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParsePrice(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestParsePrice_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "zł", "out of stock", "-", ".", "..."} {
		if _, err := ParsePrice(in); !errors.Is(err, ErrParse) {
			t.Fatalf("ParsePrice(%q): want ErrParse, got %v", in, err)
		}
	}
}
