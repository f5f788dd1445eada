package report

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatCurrency(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		amount float64
		code   string
		want   string
	}{
		{1234567, "TWD", "NT$1,234,567"},
		{0.5, "TWD", "NT$1"},
		{5, "", "NT$5"},
		{1234.5, "USD", "$1,234.50"},
		{-42.129, "EUR", "-€42.13"},
		{1000, "JPY", "¥1,000"},
		{0, "GBP", "£0.00"},
		{88.8, "CNY", "¥88.80"},
		{99.999, "XYZ", "XYZ 100.00"},
		{-0.001, "USD", "-$0.00"},
	} {
		require.Equal(t, tc.want, FormatCurrency(tc.amount, tc.code), "%v %s", tc.amount, tc.code)
	}
}

func TestFormatCompact(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		amount float64
		code   string
		want   string
	}{
		{1234567, "TWD", "NT$1.2M"},
		{-2500000, "USD", "-$2.5M"},
		{45000, "TWD", "NT$45K"},
		{12500, "TWD", "NT$13K"},
		{9999.5, "TWD", "NT$10,000"},
		{1234.567, "USD", "$1,234.57"},
		{500, "XYZ", "XYZ 500"},
		{1234.5, "XYZ", "XYZ 1,235"},
	} {
		require.Equal(t, tc.want, FormatCompact(tc.amount, tc.code), "%v %s", tc.amount, tc.code)
	}
}
