package repository

import (
	"fmt"

	"github.com/holiman/uint256"
)

// parseAmount 库里的金额以十进制字符串保存
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("金额格式错误 %q: %w", s, err)
	}
	return v, nil
}
