package model

import (
	"time"
)

// 发件箱消息只有待发和已发两种状态，发送失败的消息保持 PENDING 一直重试
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
)

// OutboxMessage 事件发件箱，和账本变更在同一个事务里写入
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"` // 账本地址，保证同一账本的事件落在同一分区
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// Models 需要自动迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&LedgerState{},
		&PaymentRecord{},
		&Account{},
		&AccountTransaction{},
		&OutboxMessage{},
	}
}
