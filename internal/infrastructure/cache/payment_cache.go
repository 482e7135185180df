package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payledger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/holiman/uint256"
)

// PaymentCache 支付记录缓存
//
// 记录写入后不可变，缓存不需要失效，只靠 TTL 控制内存占用。
// 只缓存存在的记录，OrderNotFound 不缓存（订单随时可能被支付）
type PaymentCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type cachedPayment struct {
	OrderID   string `json:"order_id"`
	Amount    string `json:"amount"`
	Payer     string `json:"payer"`
	Timestamp uint64 `json:"timestamp"`
}

func NewPaymentCache(client *redis.Client, ledgerAddr string, ttl time.Duration) *PaymentCache {
	return &PaymentCache{
		client: client,
		prefix: fmt.Sprintf("ledger:payment:%s:", ledgerAddr),
		ttl:    ttl,
	}
}

// Get 未命中返回 (nil, false, nil)
func (c *PaymentCache) Get(ctx context.Context, orderID string) (*ledger.PaymentRecord, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var p cachedPayment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("解析缓存失败: %w", err)
	}
	amount, err := uint256.FromDecimal(p.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("解析缓存金额失败: %w", err)
	}
	return &ledger.PaymentRecord{
		OrderID:   p.OrderID,
		Amount:    amount,
		Payer:     common.HexToAddress(p.Payer),
		Timestamp: p.Timestamp,
	}, true, nil
}

func (c *PaymentCache) Set(ctx context.Context, rec *ledger.PaymentRecord) error {
	raw, err := json.Marshal(cachedPayment{
		OrderID:   rec.OrderID,
		Amount:    rec.Amount.Dec(),
		Payer:     rec.Payer.Hex(),
		Timestamp: rec.Timestamp,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+rec.OrderID, raw, c.ttl).Err()
}
