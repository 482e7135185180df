package model

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// PaymentRecord 支付记录表
// 只追加，不修改，不删除；自增 ID 即订单索引的写入顺序
type PaymentRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	LedgerAddress string    `gorm:"type:varchar(42);uniqueIndex:uk_ledger_order,priority:1;not null" json:"ledger_address"`
	OrderID       OrderKey  `gorm:"uniqueIndex:uk_ledger_order,priority:2;not null" json:"order_id"`
	Amount        string    `gorm:"type:varchar(78);not null" json:"amount"` // uint256 十进制字符串
	Payer         string    `gorm:"type:varchar(42);index;not null" json:"payer"`
	Timestamp     uint64    `gorm:"not null" json:"timestamp"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_record"
}

// OrderKey 订单号列，按字节比较
//
// 【关键点】MySQL 默认排序规则（utf8mb4_0900_ai_ci）大小写、重音不敏感，
// "Order1" 会撞上 "order1" 的唯一索引，所以 MySQL 下建成 varbinary
type OrderKey string

func (OrderKey) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "mysql" {
		return "varbinary(255)"
	}
	// SQLite 的 TEXT 默认 BINARY 排序，本身按字节比较
	return "text"
}
