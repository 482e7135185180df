package idgen

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"
)

// ============================================================================
// 钱包流水号
// ============================================================================
//
// 每笔余额变动（充值、支付、提现、转账）写一条流水，流水号走唯一索引。
// 多个实例同时写同一张流水表，所以编号里带实例号，实例号由 server.worker_id 配置。
//
// 【ID 布局】64 位，高位到低位
//
//   1 位    符号位，恒为 0
//   41 位   距 2024-01-01 UTC 的毫秒数
//   10 位   实例号（0-1023）
//   12 位   同一毫秒内的序号（0-4095）
//
// 【关键点】流水号保留完整 ID，不做截断：截掉高位后不同毫秒的 ID 会撞上
//
// ============================================================================

const (
	epoch        = int64(1704067200000)
	workerIDBits = 10
	sequenceBits = 12

	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 单实例内的 ID 生成器，并发安全
type Snowflake struct {
	mu       sync.Mutex
	workerID int64
	lastMs   int64
	sequence int64
	nowMs    func() int64
}

// NewSnowflake workerID 超出范围返回错误
func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间: %d", maxWorkerID, workerID)
	}
	return &Snowflake{
		workerID: workerID,
		nowMs:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init 设置进程内默认生成器的实例号，只有第一次调用生效
func Init(workerID int64) {
	once.Do(func() {
		g, err := NewSnowflake(workerID)
		if err != nil {
			log.Fatalf("[IDGen] %v", err)
		}
		defaultGenerator = g
	})
}

// NextID 未调用 Init 时按实例号 1 初始化
func NextID() int64 {
	Init(1)
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	// 时钟回拨时沿用上一个毫秒，序号继续往后排
	if now < s.lastMs {
		now = s.lastMs
	}

	if now == s.lastMs {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 本毫秒序号用完
			for now <= s.lastMs {
				now = s.nowMs()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastMs = now

	return ((now - epoch) << timestampShift) | (s.workerID << workerIDShift) | s.sequence
}

// GenerateTransactionNo 流水号：TXN + 日期 + 完整 ID 十进制
func GenerateTransactionNo() string {
	return FormatTransactionNo(time.Now(), NextID())
}

func FormatTransactionNo(at time.Time, id int64) string {
	return "TXN" + at.Format("20060102") + strconv.FormatInt(id, 10)
}
