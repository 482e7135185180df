package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payledger/internal/config"
	"payledger/internal/ledger"
	"payledger/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
)

// ============================================================================
// 基于 MySQL 的账本存储
// ============================================================================
//
// 一次外部调用 = 一个数据库事务：
//   支付记录、累计金额、钱包余额、流水、发件箱消息要么全部提交，要么全部回滚。
//
// 转账回调里对账本的嵌套调用通过 ctx 拿到同一个 *gorm.DB 事务，
// 不会另开连接去等待自己持有的行锁。
//
// ============================================================================

type LedgerStore struct {
	db        *gorm.DB
	address   string
	topics    config.KafkaTopicConfig
	receivers *ledger.Receivers

	payments     *PaymentRepository
	states       *LedgerStateRepository
	accounts     *AccountRepository
	transactions *TransactionRepository
	outbox       *OutboxRepository
}

func NewLedgerStore(db *gorm.DB, address ledger.Address, topics config.KafkaTopicConfig, receivers *ledger.Receivers) *LedgerStore {
	if receivers == nil {
		receivers = ledger.NewReceivers()
	}
	return &LedgerStore{
		db:           db,
		address:      address.Hex(),
		topics:       topics,
		receivers:    receivers,
		payments:     NewPaymentRepository(db),
		states:       NewLedgerStateRepository(db),
		accounts:     NewAccountRepository(db),
		transactions: NewTransactionRepository(db),
		outbox:       NewOutboxRepository(db),
	}
}

// Provision 写入账本状态行并返回库中的所有者
func (s *LedgerStore) Provision(ctx context.Context, owner ledger.Address) (ledger.Address, error) {
	state, err := s.states.Provision(ctx, s.address, owner.Hex())
	if err != nil {
		return ledger.Address{}, err
	}
	return common.HexToAddress(state.Owner), nil
}

type gormTxKey struct{}

type gormTx struct {
	store    *LedgerStore
	db       *gorm.DB
	readOnly bool
}

func (s *LedgerStore) current(ctx context.Context) (*gormTx, bool) {
	tx, ok := ctx.Value(gormTxKey{}).(*gormTx)
	if !ok || tx.store != s {
		return nil, false
	}
	return tx, true
}

func (s *LedgerStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if tx, ok := s.current(ctx); ok && !tx.readOnly {
		return fn(ctx, tx)
	}
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		tx := &gormTx{store: s, db: db}
		return fn(context.WithValue(ctx, gormTxKey{}, tx), tx)
	})
}

func (s *LedgerStore) View(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if tx, ok := s.current(ctx); ok {
		return fn(ctx, tx)
	}
	tx := &gormTx{store: s, db: s.db, readOnly: true}
	return fn(context.WithValue(ctx, gormTxKey{}, tx), tx)
}

// ============================================================================
// ledger.Tx
// ============================================================================

func (t *gormTx) FindPayment(ctx context.Context, orderID string) (*ledger.PaymentRecord, bool, error) {
	row, err := t.store.payments.GetByOrderID(ctx, t.db, t.store.address, orderID)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, nil
	}
	rec, err := toPaymentRecord(row)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (t *gormTx) InsertPayment(ctx context.Context, rec *ledger.PaymentRecord) error {
	if t.readOnly {
		return errReadOnly
	}
	err := t.store.payments.Create(ctx, t.db, &model.PaymentRecord{
		LedgerAddress: t.store.address,
		OrderID:       model.OrderKey(rec.OrderID),
		Amount:        rec.Amount.Dec(),
		Payer:         rec.Payer.Hex(),
		Timestamp:     rec.Timestamp,
	})
	// 唯一索引兜底：需要 gorm.Config.TranslateError 才能识别
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ledger.ErrDuplicateOrder
	}
	return err
}

func (t *gormTx) PaymentCount(ctx context.Context) (uint64, error) {
	count, err := t.store.payments.Count(ctx, t.db, t.store.address)
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}

func (t *gormTx) OrderIDs(ctx context.Context) ([]string, error) {
	return t.store.payments.ListOrderIDs(ctx, t.db, t.store.address)
}

func (t *gormTx) EachPayment(ctx context.Context, fn func(rec *ledger.PaymentRecord) error) error {
	return t.store.payments.Each(ctx, t.db, t.store.address, 500, func(row *model.PaymentRecord) error {
		rec, err := toPaymentRecord(row)
		if err != nil {
			return err
		}
		return fn(rec)
	})
}

func (t *gormTx) TotalReceived(ctx context.Context) (*uint256.Int, error) {
	var (
		state *model.LedgerState
		err   error
	)
	if t.readOnly {
		state, err = t.store.states.Get(ctx, t.db, t.store.address)
	} else {
		state, err = t.store.states.GetForUpdate(ctx, t.db, t.store.address)
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(state.TotalReceived)
}

func (t *gormTx) SetTotalReceived(ctx context.Context, total *uint256.Int) error {
	if t.readOnly {
		return errReadOnly
	}
	return t.store.states.UpdateTotal(ctx, t.db, t.store.address, total.Dec())
}

func (t *gormTx) Emit(ctx context.Context, evt ledger.Event) error {
	if t.readOnly {
		return errReadOnly
	}
	payload, err := json.Marshal(eventPayload(evt))
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	return t.store.outbox.Create(ctx, t.db, &model.OutboxMessage{
		MessageKey: t.store.address,
		EventType:  evt.EventName(),
		Topic:      t.store.topics.TopicFor(evt.EventName()),
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

func (t *gormTx) Vault() ledger.Vault {
	return &gormVault{tx: t}
}

func toPaymentRecord(row *model.PaymentRecord) (*ledger.PaymentRecord, error) {
	amount, err := parseAmount(row.Amount)
	if err != nil {
		return nil, err
	}
	return &ledger.PaymentRecord{
		OrderID:   string(row.OrderID),
		Amount:    amount,
		Payer:     common.HexToAddress(row.Payer),
		Timestamp: row.Timestamp,
	}, nil
}

func eventPayload(evt ledger.Event) map[string]interface{} {
	switch e := evt.(type) {
	case ledger.PaymentReceived:
		return map[string]interface{}{
			"event":     e.EventName(),
			"order_id":  e.OrderID,
			"amount":    e.Amount.Dec(),
			"payer":     e.Payer.Hex(),
			"timestamp": e.Timestamp,
		}
	case ledger.Withdrawal:
		return map[string]interface{}{
			"event":     e.EventName(),
			"to":        e.To.Hex(),
			"amount":    e.Amount.Dec(),
			"timestamp": e.Timestamp,
		}
	default:
		return map[string]interface{}{"event": evt.EventName()}
	}
}
