package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"payledger/internal/config"
	"payledger/internal/ledger"
	"payledger/internal/model"
	"payledger/internal/store/memory"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type published struct {
	topic, key, eventType, value string
}

type fakePublisher struct {
	failFor map[string]error
	sent    []published
}

func (p *fakePublisher) Publish(topic, key, eventType, value string) error {
	if err, ok := p.failFor[value]; ok {
		return err
	}
	p.sent = append(p.sent, published{topic, key, eventType, value})
	return nil
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "job.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.OutboxMessage{}))
	return db
}

func seedOutbox(t *testing.T, db *gorm.DB, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		require.NoError(t, db.Create(&model.OutboxMessage{
			MessageKey: "0xledger",
			EventType:  ledger.EventPaymentReceived,
			Topic:      "ledger.payment_received",
			Payload:    p,
			Status:     model.OutboxStatusPending,
		}).Error)
	}
}

func statuses(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var msgs []model.OutboxMessage
	require.NoError(t, db.Order("id ASC").Find(&msgs).Error)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Status)
	}
	return out
}

func TestOutboxSender_SendsInOrder(t *testing.T) {
	db := openDB(t)
	seedOutbox(t, db, "m1", "m2", "m3")

	pub := &fakePublisher{}
	sender := NewOutboxSender(db, pub, &config.Config{Business: config.BusinessConfig{MaxRetryCount: 3}})
	sender.processPendingMessages(context.Background())

	require.Len(t, pub.sent, 3)
	assert.Equal(t, "m1", pub.sent[0].value)
	assert.Equal(t, "m3", pub.sent[2].value)
	assert.Equal(t, "0xledger", pub.sent[0].key)
	assert.Equal(t, ledger.EventPaymentReceived, pub.sent[0].eventType)
	assert.Equal(t, []string{model.OutboxStatusSent, model.OutboxStatusSent, model.OutboxStatusSent}, statuses(t, db))
}

func TestOutboxSender_RetriesPastThresholdUntilDelivered(t *testing.T) {
	db := openDB(t)
	seedOutbox(t, db, "m1", "m2", "m3")

	pub := &fakePublisher{failFor: map[string]error{"m2": errors.New("broker down")}}
	sender := NewOutboxSender(db, pub, &config.Config{Business: config.BusinessConfig{MaxRetryCount: 2}})
	clock := time.Unix(1_700_000_000, 0)
	sender.now = func() time.Time { return clock }
	ctx := context.Background()

	// 故障持续到远超告警阈值，m2 一直待发，m3 不越过它
	for i := 0; i < 6; i++ {
		sender.processPendingMessages(ctx)
		clock = clock.Add(sender.maxBackoff)
	}
	assert.Equal(t, []string{model.OutboxStatusSent, model.OutboxStatusPending, model.OutboxStatusPending}, statuses(t, db))
	require.Len(t, pub.sent, 1)

	var stuck model.OutboxMessage
	require.NoError(t, db.Where("payload = ?", "m2").First(&stuck).Error)
	assert.Equal(t, 6, stuck.RetryCount)

	// 恢复后按原顺序补发
	delete(pub.failFor, "m2")
	sender.processPendingMessages(ctx)
	assert.Equal(t, []string{model.OutboxStatusSent, model.OutboxStatusSent, model.OutboxStatusSent}, statuses(t, db))
	require.Len(t, pub.sent, 3)
	assert.Equal(t, "m2", pub.sent[1].value)
	assert.Equal(t, "m3", pub.sent[2].value)
}

func TestOutboxSender_BacksOffAfterFailure(t *testing.T) {
	db := openDB(t)
	seedOutbox(t, db, "m1")

	pub := &fakePublisher{failFor: map[string]error{"m1": errors.New("broker down")}}
	sender := NewOutboxSender(db, pub, &config.Config{Business: config.BusinessConfig{MaxRetryCount: 5}})
	clock := time.Unix(1_700_000_000, 0)
	sender.now = func() time.Time { return clock }
	ctx := context.Background()

	retries := func() int {
		var msg model.OutboxMessage
		require.NoError(t, db.First(&msg).Error)
		return msg.RetryCount
	}

	sender.processPendingMessages(ctx)
	assert.Equal(t, 1, retries())

	// 退避期内不再尝试
	sender.processPendingMessages(ctx)
	assert.Equal(t, 1, retries())

	clock = clock.Add(sender.baseBackoff)
	sender.processPendingMessages(ctx)
	assert.Equal(t, 2, retries())

	// 第二次失败退避翻倍
	clock = clock.Add(sender.baseBackoff)
	sender.processPendingMessages(ctx)
	assert.Equal(t, 2, retries())

	delete(pub.failFor, "m1")
	clock = clock.Add(sender.baseBackoff)
	sender.processPendingMessages(ctx)
	assert.Equal(t, []string{model.OutboxStatusSent}, statuses(t, db))
}

func TestOutboxSender_BackoffCapped(t *testing.T) {
	sender := NewOutboxSender(nil, &fakePublisher{}, &config.Config{})
	assert.Equal(t, sender.baseBackoff, sender.backoff(1))
	assert.Equal(t, 2*sender.baseBackoff, sender.backoff(2))
	assert.Equal(t, sender.maxBackoff, sender.backoff(1000))
}

func TestOutboxSender_StartStops(t *testing.T) {
	db := openDB(t)
	sender := NewOutboxSender(db, &fakePublisher{}, &config.Config{})

	done := make(chan struct{})
	go func() {
		sender.Start(context.Background())
		close(done)
	}()
	sender.Stop()
	<-done
}

func TestReconcileJob(t *testing.T) {
	receivers := ledger.NewReceivers()
	store := memory.New(receivers)
	self := common.HexToAddress("0x01")
	payer := common.HexToAddress("0x02")
	l, err := ledger.New(self, common.HexToAddress("0x03"), store)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Transaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Mint(ctx, payer, uint256.NewInt(100))
	}))
	require.NoError(t, l.Pay(ctx, ledger.Call{Caller: payer, Value: uint256.NewInt(40), Time: 1}, "order1"))

	j := NewReconcileJob(l, 0)
	assert.True(t, j.reconcile(ctx))
	assert.Equal(t, uint64(40), j.lastReport.TotalReceived.Uint64())

	require.NoError(t, store.Transaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.SetTotalReceived(ctx, uint256.NewInt(41))
	}))
	assert.False(t, j.reconcile(ctx))
}

type failingAuditor struct{}

func (failingAuditor) Audit(context.Context) (*ledger.AuditReport, error) {
	return nil, errors.New("db gone")
}

func TestReconcileJob_AuditError(t *testing.T) {
	j := NewReconcileJob(failingAuditor{}, 0)
	assert.False(t, j.reconcile(context.Background()))
	assert.Nil(t, j.lastReport)
}
