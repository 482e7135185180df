package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"payledger/internal/ledger"
	"payledger/internal/model"
	"payledger/pkg/idgen"

	"github.com/holiman/uint256"
)

var errReadOnly = errors.New("只读事务不能修改状态")

// gormVault 事务内的钱包，所有余额变动都加行锁并记流水
type gormVault struct {
	tx *gormTx
}

func (v *gormVault) BalanceOf(ctx context.Context, addr ledger.Address) (*uint256.Int, error) {
	account, err := v.tx.store.accounts.GetByAddress(ctx, v.tx.db, addr.Hex())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	return parseAmount(account.Balance)
}

func (v *gormVault) Attach(ctx context.Context, from, to ledger.Address, amount *uint256.Int, ref string) error {
	return v.move(ctx, from, to, amount, ledger.KindPayment, ref)
}

func (v *gormVault) Send(ctx context.Context, from, to ledger.Address, amount *uint256.Int, kind ledger.TransferKind) error {
	if err := v.move(ctx, from, to, amount, kind, ""); err != nil {
		return err
	}
	return v.tx.store.receivers.Notify(ctx, from, to, amount)
}

func (v *gormVault) Mint(ctx context.Context, to ledger.Address, amount *uint256.Int) error {
	if v.tx.readOnly {
		return errReadOnly
	}
	if amount == nil || amount.IsZero() {
		return ledger.ErrInvalidAmount
	}

	account, err := v.tx.store.accounts.GetOrCreateForUpdate(ctx, v.tx.db, to.Hex())
	if err != nil {
		return fmt.Errorf("获取钱包失败: %w", err)
	}
	before, err := parseAmount(account.Balance)
	if err != nil {
		return err
	}
	after, overflow := new(uint256.Int).AddOverflow(before, amount)
	if overflow {
		return ledger.ErrOverflow
	}
	if err := v.tx.store.accounts.UpdateBalance(ctx, v.tx.db, account, after.Dec()); err != nil {
		return fmt.Errorf("充值失败: %w", err)
	}

	return v.tx.store.transactions.Create(ctx, v.tx.db, &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		ToAddress:     to.Hex(),
		Amount:        amount.Dec(),
		Type:          string(ledger.KindRecharge),
		BalanceBefore: before.Dec(),
		BalanceAfter:  after.Dec(),
	})
}

func (v *gormVault) move(ctx context.Context, from, to ledger.Address, amount *uint256.Int, kind ledger.TransferKind, ref string) error {
	if v.tx.readOnly {
		return errReadOnly
	}
	if amount == nil || amount.IsZero() {
		return ledger.ErrInvalidAmount
	}

	fromAcc, toAcc, err := v.lockPair(ctx, from, to)
	if err != nil {
		return err
	}

	fromBefore, err := parseAmount(fromAcc.Balance)
	if err != nil {
		return err
	}
	if fromBefore.Lt(amount) {
		return ledger.ErrInsufficientFunds
	}
	fromAfter := new(uint256.Int).Sub(fromBefore, amount)
	if err := v.tx.store.accounts.UpdateBalance(ctx, v.tx.db, fromAcc, fromAfter.Dec()); err != nil {
		return fmt.Errorf("扣款失败: %w", err)
	}

	// 自己转给自己时 toAcc 和 fromAcc 是同一行，余额要在扣款后的基础上加
	if from == to {
		toAcc = fromAcc
	}
	toBefore, err := parseAmount(toAcc.Balance)
	if err != nil {
		return err
	}
	toAfter, overflow := new(uint256.Int).AddOverflow(toBefore, amount)
	if overflow {
		return ledger.ErrOverflow
	}
	if err := v.tx.store.accounts.UpdateBalance(ctx, v.tx.db, toAcc, toAfter.Dec()); err != nil {
		return fmt.Errorf("入账失败: %w", err)
	}

	return v.tx.store.transactions.Create(ctx, v.tx.db, &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		FromAddress:   from.Hex(),
		ToAddress:     to.Hex(),
		Amount:        amount.Dec(),
		Type:          string(kind),
		Reference:     ref,
		BalanceBefore: fromBefore.Dec(),
		BalanceAfter:  fromAfter.Dec(),
	})
}

// lockPair 按地址顺序加行锁，避免两笔反向转账互相等待
func (v *gormVault) lockPair(ctx context.Context, from, to ledger.Address) (*model.Account, *model.Account, error) {
	accounts := v.tx.store.accounts
	if from == to {
		acc, err := accounts.GetOrCreateForUpdate(ctx, v.tx.db, from.Hex())
		if err != nil {
			return nil, nil, fmt.Errorf("获取钱包失败: %w", err)
		}
		return acc, acc, nil
	}

	first, second := from, to
	if bytes.Compare(from.Bytes(), to.Bytes()) > 0 {
		first, second = to, from
	}
	a, err := accounts.GetOrCreateForUpdate(ctx, v.tx.db, first.Hex())
	if err != nil {
		return nil, nil, fmt.Errorf("获取钱包失败: %w", err)
	}
	b, err := accounts.GetOrCreateForUpdate(ctx, v.tx.db, second.Hex())
	if err != nil {
		return nil, nil, fmt.Errorf("获取钱包失败: %w", err)
	}
	if first == from {
		return a, b, nil
	}
	return b, a, nil
}
