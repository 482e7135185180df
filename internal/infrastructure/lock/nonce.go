package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrNonceUsed = errors.New("请求ID已使用")

// NonceStore 签名请求的防重放：每个 (caller, requestID) 只能用一次
type NonceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewNonceStore(client *redis.Client, ttl time.Duration) *NonceStore {
	return &NonceStore{client: client, ttl: ttl}
}

// Use 首次使用返回 nil，重复使用返回 ErrNonceUsed
func (n *NonceStore) Use(ctx context.Context, caller, requestID string) error {
	key := fmt.Sprintf("ledger:nonce:%s:%s", caller, requestID)
	ok, err := n.client.SetNX(ctx, key, 1, n.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNonceUsed
	}
	return nil
}
