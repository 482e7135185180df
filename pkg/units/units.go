// Package units 链上最小单位与展示金额之间的换算
package units

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var ErrInvalidUnits = errors.New("金额格式错误")

// FormatUnits 1500000000000000000, 18 -> "1.5"
func FormatUnits(v *uint256.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -decimals).String()
}

// ParseUnits "1.5", 18 -> 1500000000000000000；负数、超出精度、溢出都返回错误
func ParseUnits(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, ErrInvalidUnits
	}
	d = d.Shift(decimals)
	if d.IsNegative() || !d.IsInteger() {
		return nil, ErrInvalidUnits
	}
	v, overflow := uint256.FromBig(d.BigInt())
	if overflow {
		return nil, ErrInvalidUnits
	}
	return v, nil
}
