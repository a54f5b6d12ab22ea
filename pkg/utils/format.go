// Package utils provides market-clock and display helpers shared by the CLI.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatIndianCurrency formats a number in Indian currency format (lakhs, crores).
func FormatIndianCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	intPart, decPart, _ := strings.Cut(fmt.Sprintf("%.2f", amount), ".")

	result := "₹" + formatIndianNumber(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// formatIndianNumber groups an integer string as 12,34,567.
func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 2 {
		result = s[len(s)-2:] + "," + result
		s = s[:len(s)-2]
	}
	return s + "," + result
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats P&L with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := FormatIndianCurrency(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatQuantity formats a quantity with Indian digit grouping.
func FormatQuantity(qty int64) string {
	if qty < 0 {
		return "-" + formatIndianNumber(strconv.FormatInt(-qty, 10))
	}
	return formatIndianNumber(strconv.FormatInt(qty, 10))
}

// FormatCompact formats a number in lakhs or crores once it is large
// enough, and as currency otherwise.
func FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e7:
		return fmt.Sprintf("%.2f Cr", amount/1e7)
	case abs >= 1e5:
		return fmt.Sprintf("%.2f L", amount/1e5)
	}
	return FormatIndianCurrency(amount)
}

// FormatVolume formats traded volume compactly (K, L, Cr).
func FormatVolume(volume int64) string {
	v := float64(volume)
	switch {
	case volume >= 10000000:
		return fmt.Sprintf("%.2fCr", v/1e7)
	case volume >= 100000:
		return fmt.Sprintf("%.2fL", v/1e5)
	case volume >= 1000:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
	return strconv.FormatInt(volume, 10)
}

// FormatPrice formats a price with two decimals and Indian grouping.
func FormatPrice(price float64) string {
	return strings.TrimPrefix(FormatIndianCurrency(price), "₹")
}
