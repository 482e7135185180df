package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"payledger/internal/infrastructure/lock"
	"payledger/internal/ledger"

	"github.com/holiman/uint256"
)

var ErrBusy = errors.New("系统繁忙，请稍后重试")

// PaymentCache 支付记录的只读缓存
type PaymentCache interface {
	Get(ctx context.Context, orderID string) (*ledger.PaymentRecord, bool, error)
	Set(ctx context.Context, rec *ledger.PaymentRecord) error
}

// Invocation 一次经过认证的外部调用
type Invocation struct {
	RequestID string
	Caller    ledger.Address
	Value     *uint256.Int // 调用附带的原生币，可以为空
}

// LedgerService 账本对外服务
//
// 【关键点】
// 1. 同一账本的写操作先拿调用锁，多实例之间串行
// 2. 账本自己的重入锁只拦截嵌套调用，不负责排队
// 3. 读操作不加锁
type LedgerService struct {
	ledger *ledger.Ledger
	locker lock.InvocationLocker
	cache  PaymentCache
	now    func() time.Time
}

// NewLedgerService cache 可以为 nil
func NewLedgerService(l *ledger.Ledger, locker lock.InvocationLocker, cache PaymentCache) *LedgerService {
	return &LedgerService{
		ledger: l,
		locker: locker,
		cache:  cache,
		now:    time.Now,
	}
}

func (s *LedgerService) Ledger() *ledger.Ledger { return s.ledger }

func (s *LedgerService) Pay(ctx context.Context, inv Invocation, orderID string) error {
	return s.invoke(ctx, inv, "pay", func(call ledger.Call) error {
		if err := s.ledger.Pay(ctx, call, orderID); err != nil {
			return err
		}
		log.Printf("[LedgerService] 收到支付: order_id=%s, payer=%s, amount=%s",
			orderID, call.Caller.Hex(), call.Value.Dec())
		return nil
	})
}

func (s *LedgerService) Withdraw(ctx context.Context, inv Invocation, amount *uint256.Int) error {
	return s.invoke(ctx, inv, "withdraw", func(call ledger.Call) error {
		if err := s.ledger.Withdraw(ctx, call, amount); err != nil {
			return err
		}
		log.Printf("[LedgerService] 提现成功: to=%s, amount=%s", s.ledger.Owner().Hex(), amount.Dec())
		return nil
	})
}

// WithdrawAll 返回提走的金额
func (s *LedgerService) WithdrawAll(ctx context.Context, inv Invocation) (*uint256.Int, error) {
	var held *uint256.Int
	err := s.invoke(ctx, inv, "withdrawAll", func(call ledger.Call) error {
		// 持有调用锁，读到的余额就是这次提走的金额
		var err error
		if held, err = s.ledger.HeldBalance(ctx); err != nil {
			return err
		}
		if err := s.ledger.WithdrawAll(ctx, call); err != nil {
			return err
		}
		log.Printf("[LedgerService] 全部提现成功: to=%s, amount=%s", s.ledger.Owner().Hex(), held.Dec())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return held, nil
}

func (s *LedgerService) invoke(ctx context.Context, inv Invocation, op string, fn func(call ledger.Call) error) error {
	release, err := s.locker.Acquire(ctx, inv.RequestID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer release()

	call := ledger.Call{
		Caller: inv.Caller,
		Value:  inv.Value,
		Time:   uint64(s.now().Unix()),
	}
	if err := fn(call); err != nil {
		log.Printf("[LedgerService] %s 失败: request=%s, caller=%s, err=%v", op, inv.RequestID, inv.Caller.Hex(), err)
		return err
	}
	return nil
}

// GetPayment 记录不可变，命中缓存直接返回
func (s *LedgerService) GetPayment(ctx context.Context, orderID string) (*ledger.PaymentRecord, error) {
	if s.cache != nil {
		rec, ok, err := s.cache.Get(ctx, orderID)
		if err != nil {
			log.Printf("[LedgerService] 读取缓存失败: order_id=%s, err=%v", orderID, err)
		} else if ok {
			return rec, nil
		}
	}

	rec, err := s.ledger.GetPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rec); err != nil {
			log.Printf("[LedgerService] 写入缓存失败: order_id=%s, err=%v", orderID, err)
		}
	}
	return rec, nil
}

func (s *LedgerService) GetPaymentCount(ctx context.Context) (uint64, error) {
	return s.ledger.GetPaymentCount(ctx)
}

func (s *LedgerService) TotalReceived(ctx context.Context) (*uint256.Int, error) {
	return s.ledger.TotalReceived(ctx)
}

func (s *LedgerService) OrderIDs(ctx context.Context) ([]string, error) {
	return s.ledger.OrderIDs(ctx)
}

func (s *LedgerService) HeldBalance(ctx context.Context) (*uint256.Int, error) {
	return s.ledger.HeldBalance(ctx)
}
