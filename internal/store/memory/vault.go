package memory

import (
	"context"
	"errors"

	"payledger/internal/ledger"

	"github.com/holiman/uint256"
)

var errReadOnly = errors.New("只读事务不能修改状态")

// memVault 事务内的钱包视图
type memVault memTx

func (v *memVault) tx() *memTx { return (*memTx)(v) }

func (v *memVault) BalanceOf(_ context.Context, addr ledger.Address) (*uint256.Int, error) {
	if bal, ok := v.st.balances[addr]; ok {
		return bal.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (v *memVault) Attach(ctx context.Context, from, to ledger.Address, amount *uint256.Int, ref string) error {
	return v.move(ctx, from, to, amount, ledger.KindPayment, ref)
}

func (v *memVault) Send(ctx context.Context, from, to ledger.Address, amount *uint256.Int, kind ledger.TransferKind) error {
	if err := v.move(ctx, from, to, amount, kind, ""); err != nil {
		return err
	}
	return v.tx().store.receivers.Notify(ctx, from, to, amount)
}

func (v *memVault) Mint(ctx context.Context, to ledger.Address, amount *uint256.Int) error {
	if v.readOnly {
		return errReadOnly
	}
	bal, _ := v.BalanceOf(ctx, to)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return ledger.ErrOverflow
	}
	v.st.balances[to] = sum
	v.st.journal = append(v.st.journal, Movement{To: to, Amount: amount.Clone(), Kind: ledger.KindRecharge})
	return nil
}

func (v *memVault) move(ctx context.Context, from, to ledger.Address, amount *uint256.Int, kind ledger.TransferKind, ref string) error {
	if v.readOnly {
		return errReadOnly
	}
	if amount == nil || amount.IsZero() {
		return ledger.ErrInvalidAmount
	}

	fromBal, _ := v.BalanceOf(ctx, from)
	if fromBal.Lt(amount) {
		return ledger.ErrInsufficientFunds
	}
	v.st.balances[from] = new(uint256.Int).Sub(fromBal, amount)

	toBal, _ := v.BalanceOf(ctx, to)
	sum, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return ledger.ErrOverflow
	}
	v.st.balances[to] = sum

	v.st.journal = append(v.st.journal, Movement{
		From:   from,
		To:     to,
		Amount: amount.Clone(),
		Kind:   kind,
		Ref:    ref,
	})
	return nil
}
