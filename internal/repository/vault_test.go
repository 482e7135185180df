package repository

import (
	"context"
	"testing"

	"payledger/internal/ledger"
	"payledger/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVault_SendJournalsBothSides(t *testing.T) {
	f := newStoreFixture(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	err := f.store.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Send(ctx, payerAddr, to, uint256.NewInt(250), ledger.KindTransfer)
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(999_750), f.balance(t, payerAddr))
	assert.Equal(t, uint64(250), f.balance(t, to))

	var list []*model.AccountTransaction
	require.NoError(t, f.db.Where("to_address = ?", to.Hex()).Find(&list).Error)
	require.Len(t, list, 1)
	assert.Equal(t, "999750", list[0].BalanceAfter)
	assert.Equal(t, string(ledger.KindTransfer), list[0].Type)
}

func TestVault_SelfTransferKeepsBalance(t *testing.T) {
	f := newStoreFixture(t)

	err := f.store.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Send(ctx, payerAddr, payerAddr, uint256.NewInt(10), ledger.KindTransfer)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), f.balance(t, payerAddr))
}

func TestVault_RejectsZeroAndMissingFunds(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000def")

	err := f.store.Transaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Send(ctx, payerAddr, stranger, uint256.NewInt(0), ledger.KindTransfer)
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	err = f.store.Transaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Send(ctx, stranger, payerAddr, uint256.NewInt(1), ledger.KindTransfer)
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// 回滚后不会留下空钱包
	var count int64
	require.NoError(t, f.db.Model(&model.Account{}).Where("address = ?", stranger.Hex()).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAccountRepository_OptimisticLock(t *testing.T) {
	f := newStoreFixture(t)
	repo := NewAccountRepository(f.db)
	ctx := context.Background()

	acc, err := repo.GetByAddress(ctx, nil, payerAddr.Hex())
	require.NoError(t, err)

	stale := *acc
	require.NoError(t, repo.UpdateBalance(ctx, f.db, acc, "5"))
	assert.ErrorIs(t, repo.UpdateBalance(ctx, f.db, &stale, "6"), ErrOptimisticLock)

	_, err = repo.GetByAddress(ctx, nil, "0xnobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
