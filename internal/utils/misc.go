package utils

import (
	"fmt"

	"github.com/Ndunguuu01/kodipay/internal/constants"
)

func Ptr[T any](v T) *T {
	return &v
}

func Val[T any](p *T) T {
	if p != nil {
		return *p
	}
	var zero T
	return zero
}

// FormatMinorUnits renders an amount in minor units as "KES 1,234.50".
func FormatMinorUnits(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	whole := fmt.Sprintf("%d", amount/100)
	for i := len(whole) - 3; i > 0; i -= 3 {
		whole = whole[:i] + "," + whole[i:]
	}
	return fmt.Sprintf("%s %s%s.%02d", constants.CurrencyCode, sign, whole, amount%100)
}
