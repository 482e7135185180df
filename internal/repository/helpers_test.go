package repository

import (
	"context"
	"path/filepath"
	"testing"

	"payledger/internal/config"
	"payledger/internal/ledger"
	"payledger/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ledgerAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	ownerAddr  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	payerAddr  = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

var testTopics = config.KafkaTopicConfig{
	PaymentReceived: "ledger.payment_received",
	Withdrawal:      "ledger.withdrawal",
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Models()...))
	return db
}

type storeFixture struct {
	db        *gorm.DB
	store     *LedgerStore
	ledger    *ledger.Ledger
	receivers *ledger.Receivers
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	db := openTestDB(t)
	receivers := ledger.NewReceivers()
	store := NewLedgerStore(db, ledgerAddr, testTopics, receivers)

	owner, err := store.Provision(context.Background(), ownerAddr)
	require.NoError(t, err)

	l, err := ledger.New(ledgerAddr, owner, store)
	require.NoError(t, err)
	receivers.Register(ledgerAddr, l.ReceiveHook())

	f := &storeFixture{db: db, store: store, ledger: l, receivers: receivers}
	f.mint(t, payerAddr, 1_000_000)
	return f
}

func (f *storeFixture) mint(t *testing.T, addr ledger.Address, amount uint64) {
	t.Helper()
	err := f.store.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Mint(ctx, addr, uint256.NewInt(amount))
	})
	require.NoError(t, err)
}

func (f *storeFixture) balance(t *testing.T, addr ledger.Address) uint64 {
	t.Helper()
	var bal *uint256.Int
	err := f.store.View(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		var err error
		bal, err = tx.Vault().BalanceOf(ctx, addr)
		return err
	})
	require.NoError(t, err)
	return bal.Uint64()
}

func (f *storeFixture) outbox(t *testing.T) []*model.OutboxMessage {
	t.Helper()
	var msgs []*model.OutboxMessage
	require.NoError(t, f.db.Order("id ASC").Find(&msgs).Error)
	return msgs
}

func payCall(caller ledger.Address, amount uint64) ledger.Call {
	return ledger.Call{Caller: caller, Value: uint256.NewInt(amount), Time: 1_700_000_000}
}

func ownerCall() ledger.Call {
	return ledger.Call{Caller: ownerAddr, Time: 1_700_000_100}
}
