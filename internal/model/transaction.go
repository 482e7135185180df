package model

import (
	"time"
)

// AccountTransaction 钱包流水表
// 记录每一笔原生币变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 支付流水关联订单号 —— 便于和支付记录对账
// 3. 记录转出方交易前后余额 —— 便于校验余额一致性
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	FromAddress   string    `gorm:"type:varchar(42);index" json:"from_address"`                  // 充值时为空
	ToAddress     string    `gorm:"type:varchar(42);index;not null" json:"to_address"`
	Amount        string    `gorm:"type:varchar(78);not null" json:"amount"`
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`    // PAYMENT / WITHDRAWAL / TRANSFER / RECHARGE
	Reference     string    `gorm:"type:varchar(255);index" json:"reference"` // 支付流水为订单号
	BalanceBefore string    `gorm:"type:varchar(78)" json:"balance_before"`
	BalanceAfter  string    `gorm:"type:varchar(78)" json:"balance_after"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
