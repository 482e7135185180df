package ledger

import (
	"context"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/holiman/uint256"
)

// Ledger 支付账本
//
// 【关键点】
// 1. 每笔支付按订单号只记录一次
// 2. total_received 是累计流入，提现不会减少它
// 3. 账本持有的余额由执行环境（Vault）记账，不是账本字段
// 4. pay / withdraw / withdrawAll 都在重入锁内执行
type Ledger struct {
	self  Address
	gate  *AccessGate
	lock  ReentrancyLock
	store Store
}

// New 创建账本，self 是账本自己的地址，owner 为唯一可提现的地址
func New(self, owner Address, store Store) (*Ledger, error) {
	if owner == (Address{}) {
		return nil, ErrInvalidOwner
	}
	return &Ledger{
		self:  self,
		gate:  NewAccessGate(owner),
		store: store,
	}, nil
}

func (l *Ledger) Address() Address { return l.self }

func (l *Ledger) Owner() Address { return l.gate.Owner() }

// ============================================================================
// 写操作
// ============================================================================

// Pay 记录一笔支付，call.Value 即支付金额
//
// 校验顺序（先失败者为准）：金额 > 0 -> 订单号合法 -> 订单号未使用
func (l *Ledger) Pay(ctx context.Context, call Call, orderID string) error {
	return l.lock.guarded(func() error {
		return l.store.Transaction(ctx, func(ctx context.Context, tx Tx) error {
			return l.pay(ctx, tx, call, orderID)
		})
	})
}

func (l *Ledger) pay(ctx context.Context, tx Tx, call Call, orderID string) error {
	if !call.HasValue() {
		return ErrInvalidAmount
	}
	if orderID == "" || len(orderID) > MaxOrderIDLength || !utf8.ValidString(orderID) {
		return ErrInvalidOrderID
	}

	_, exists, err := tx.FindPayment(ctx, orderID)
	if err != nil {
		return fmt.Errorf("查询支付记录失败: %w", err)
	}
	if exists {
		return ErrDuplicateOrder
	}

	amount := call.Value.Clone()

	total, err := tx.TotalReceived(ctx)
	if err != nil {
		return fmt.Errorf("查询累计金额失败: %w", err)
	}
	newTotal, overflow := new(uint256.Int).AddOverflow(total, amount)
	if overflow {
		return ErrOverflow
	}

	// 原生币随调用划入账本
	if err := tx.Vault().Attach(ctx, call.Caller, l.self, amount, orderID); err != nil {
		return err
	}

	rec := &PaymentRecord{
		OrderID:   orderID,
		Amount:    amount,
		Payer:     call.Caller,
		Timestamp: call.Time,
	}
	if err := tx.InsertPayment(ctx, rec); err != nil {
		return fmt.Errorf("写入支付记录失败: %w", err)
	}
	if err := tx.SetTotalReceived(ctx, newTotal); err != nil {
		return fmt.Errorf("更新累计金额失败: %w", err)
	}

	return tx.Emit(ctx, PaymentReceived{
		OrderID:   orderID,
		Amount:    amount.Clone(),
		Payer:     call.Caller,
		Timestamp: call.Time,
	})
}

// Withdraw 所有者提取指定金额
func (l *Ledger) Withdraw(ctx context.Context, call Call, amount *uint256.Int) error {
	return l.lock.guarded(func() error {
		return l.store.Transaction(ctx, func(ctx context.Context, tx Tx) error {
			if err := l.checkWithdrawCall(call); err != nil {
				return err
			}
			return l.withdraw(ctx, tx, call, amount)
		})
	})
}

// WithdrawAll 所有者提取全部持有余额
func (l *Ledger) WithdrawAll(ctx context.Context, call Call) error {
	return l.lock.guarded(func() error {
		return l.store.Transaction(ctx, func(ctx context.Context, tx Tx) error {
			if err := l.checkWithdrawCall(call); err != nil {
				return err
			}
			held, err := tx.Vault().BalanceOf(ctx, l.self)
			if err != nil {
				return fmt.Errorf("查询账本余额失败: %w", err)
			}
			if held.IsZero() {
				return ErrNothingToWithdraw
			}
			return l.withdraw(ctx, tx, call, held)
		})
	})
}

// checkWithdrawCall 提现不接收附带的原生币，然后校验所有者
func (l *Ledger) checkWithdrawCall(call Call) error {
	if call.HasValue() {
		return ErrDirectTransferRejected
	}
	return l.gate.RequireOwner(call.Caller)
}

func (l *Ledger) withdraw(ctx context.Context, tx Tx, call Call, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}

	held, err := tx.Vault().BalanceOf(ctx, l.self)
	if err != nil {
		return fmt.Errorf("查询账本余额失败: %w", err)
	}
	if amount.Gt(held) {
		return ErrInsufficientBalance
	}

	owner := l.gate.Owner()
	amount = amount.Clone()

	// 【关键点】转账是唯一可能回调进账本的地方，此时重入锁仍然持有
	if err := tx.Vault().Send(ctx, l.self, owner, amount, KindWithdrawal); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	return tx.Emit(ctx, Withdrawal{
		To:        owner,
		Amount:    amount.Clone(),
		Timestamp: call.Time,
	})
}

// ReceiveHook 注册到账本地址上的接收回调：pay 以外的任何转入一律拒绝
func (l *Ledger) ReceiveHook() ReceiveHook {
	return func(_ context.Context, from Address, amount *uint256.Int) error {
		log.Printf("[Ledger] 拒绝直接转入: from=%s, amount=%s", from.Hex(), amount.Dec())
		return ErrDirectTransferRejected
	}
}

// ============================================================================
// 只读查询，不加重入锁
// ============================================================================

// GetPayment 查询支付记录，不存在返回 ErrOrderNotFound
func (l *Ledger) GetPayment(ctx context.Context, orderID string) (*PaymentRecord, error) {
	var rec *PaymentRecord
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		found, exists, err := tx.FindPayment(ctx, orderID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrOrderNotFound
		}
		rec = found.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *Ledger) GetPaymentCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		count, err = tx.PaymentCount(ctx)
		return err
	})
	return count, err
}

func (l *Ledger) TotalReceived(ctx context.Context) (*uint256.Int, error) {
	var total *uint256.Int
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.TotalReceived(ctx)
		if err != nil {
			return err
		}
		total = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// OrderIDs 按写入顺序列出全部订单号
func (l *Ledger) OrderIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ids, err = tx.OrderIDs(ctx)
		return err
	})
	return ids, err
}

// HeldBalance 账本当前持有的余额
func (l *Ledger) HeldBalance(ctx context.Context) (*uint256.Int, error) {
	var held *uint256.Int
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		held, err = tx.Vault().BalanceOf(ctx, l.self)
		return err
	})
	if err != nil {
		return nil, err
	}
	return held, nil
}
