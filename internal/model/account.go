package model

import (
	"time"
)

// Account 钱包表
// 执行环境中每个地址的原生币余额，账本的持有余额就是账本地址这一行
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Address   string    `gorm:"type:varchar(42);uniqueIndex;not null" json:"address"`
	Balance   string    `gorm:"type:varchar(78);not null;default:0" json:"balance"` // uint256 十进制字符串
	Version   int       `gorm:"not null;default:0" json:"version"`                  // 每次变动 +1
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
