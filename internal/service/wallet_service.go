package service

import (
	"context"
	"errors"
	"log"

	"payledger/internal/ledger"

	"github.com/holiman/uint256"
)

var ErrFaucetDisabled = errors.New("充值功能未开启")

// WalletService 执行环境的钱包：充值、余额、地址间转账
type WalletService struct {
	store         ledger.Store
	ledgerAddr    ledger.Address
	faucetEnabled bool
}

func NewWalletService(store ledger.Store, ledgerAddr ledger.Address, faucetEnabled bool) *WalletService {
	return &WalletService{
		store:         store,
		ledgerAddr:    ledgerAddr,
		faucetEnabled: faucetEnabled,
	}
}

func (s *WalletService) GetBalance(ctx context.Context, addr ledger.Address) (*uint256.Int, error) {
	var bal *uint256.Int
	err := s.store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		bal, err = tx.Vault().BalanceOf(ctx, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bal, nil
}

// Recharge 水龙头充值。账本地址只能通过 pay 收款，不能直接充值
func (s *WalletService) Recharge(ctx context.Context, to ledger.Address, amount *uint256.Int) error {
	if !s.faucetEnabled {
		return ErrFaucetDisabled
	}
	if amount == nil || amount.IsZero() {
		return ledger.ErrInvalidAmount
	}
	if to == s.ledgerAddr {
		return ledger.ErrDirectTransferRejected
	}

	err := s.store.Transaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Mint(ctx, to, amount)
	})
	if err != nil {
		return err
	}
	log.Printf("[WalletService] 充值成功: to=%s, amount=%s", to.Hex(), amount.Dec())
	return nil
}

// Transfer 地址间转账，会触发接收方的回调（转给账本会被拒绝）
func (s *WalletService) Transfer(ctx context.Context, from, to ledger.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ledger.ErrInvalidAmount
	}

	err := s.store.Transaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Send(ctx, from, to, amount, ledger.KindTransfer)
	})
	if err != nil {
		log.Printf("[WalletService] 转账失败: from=%s, to=%s, amount=%s, err=%v", from.Hex(), to.Hex(), amount.Dec(), err)
		return err
	}
	log.Printf("[WalletService] 转账成功: from=%s, to=%s, amount=%s", from.Hex(), to.Hex(), amount.Dec())
	return nil
}
