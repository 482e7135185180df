package model

import (
	"time"
)

// LedgerState 账本单例状态，每个账本地址一行
type LedgerState struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Address       string    `gorm:"type:varchar(42);uniqueIndex;not null" json:"address"`
	Owner         string    `gorm:"type:varchar(42);not null" json:"owner"` // 部署时写入一次
	TotalReceived string    `gorm:"type:varchar(78);not null;default:0" json:"total_received"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LedgerState) TableName() string {
	return "ledger_state"
}
