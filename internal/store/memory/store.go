package memory

import (
	"context"
	"slices"
	"sync"

	"payledger/internal/ledger"

	"github.com/holiman/uint256"
)

// Movement 一条钱包流水
type Movement struct {
	From   ledger.Address
	To     ledger.Address
	Amount *uint256.Int
	Kind   ledger.TransferKind
	Ref    string
}

type state struct {
	records  map[string]*ledger.PaymentRecord
	index    []string
	total    *uint256.Int
	balances map[ledger.Address]*uint256.Int
	journal  []Movement
}

func (s *state) clone() *state {
	c := &state{
		records:  make(map[string]*ledger.PaymentRecord, len(s.records)),
		index:    slices.Clone(s.index),
		total:    s.total.Clone(),
		balances: make(map[ledger.Address]*uint256.Int, len(s.balances)),
		journal:  slices.Clone(s.journal),
	}
	// 记录与余额值只会被整体替换，不会原地修改，浅拷贝即可
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return c
}

// Store 内存版账本存储，事务写在副本上，成功后整体替换
type Store struct {
	txMu sync.Mutex // 串行化写事务

	mu          sync.RWMutex
	committed   *state
	events      []ledger.Event
	subscribers []func(ledger.Event)

	// 待投递给订阅者的事件，由 deliverLoop 按提交顺序消费
	queueMu   sync.Mutex
	queue     []ledger.Event
	wake      chan struct{}
	startOnce sync.Once

	receivers *ledger.Receivers
}

func New(receivers *ledger.Receivers) *Store {
	if receivers == nil {
		receivers = ledger.NewReceivers()
	}
	return &Store{
		committed: &state{
			records:  make(map[string]*ledger.PaymentRecord),
			total:    new(uint256.Int),
			balances: make(map[ledger.Address]*uint256.Int),
		},
		wake:      make(chan struct{}, 1),
		receivers: receivers,
	}
}

type txKey struct{}

type memTx struct {
	store    *Store
	st       *state
	pending  []ledger.Event
	readOnly bool
}

func (s *Store) current(ctx context.Context) (*memTx, bool) {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	if !ok || tx.store != s {
		return nil, false
	}
	return tx, true
}

func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if tx, ok := s.current(ctx); ok && !tx.readOnly {
		return fn(ctx, tx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &memTx{store: s, st: s.committed.clone()}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = tx.st
	s.events = append(s.events, tx.pending...)
	hasSubscribers := len(s.subscribers) > 0
	s.mu.Unlock()

	// 写事务串行，入队顺序就是提交顺序
	if hasSubscribers && len(tx.pending) > 0 {
		s.enqueue(tx.pending)
	}
	return nil
}

func (s *Store) enqueue(events []ledger.Event) {
	s.queueMu.Lock()
	s.queue = append(s.queue, events...)
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// deliverLoop 在独立的 goroutine 里回调订阅者。
// 回调与发起事件的调用不在同一个 goroutine，回调里再发起的调用只需等对方释放锁
func (s *Store) deliverLoop() {
	for range s.wake {
		for {
			s.queueMu.Lock()
			batch := s.queue
			s.queue = nil
			s.queueMu.Unlock()
			if len(batch) == 0 {
				break
			}

			s.mu.RLock()
			subscribers := slices.Clone(s.subscribers)
			s.mu.RUnlock()

			for _, evt := range batch {
				for _, sub := range subscribers {
					sub(evt)
				}
			}
		}
	}
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if tx, ok := s.current(ctx); ok {
		return fn(ctx, tx)
	}

	// 已提交的状态只会被整体替换，拿到快照后即可释放读锁
	s.mu.RLock()
	tx := &memTx{store: s, st: s.committed, readOnly: true}
	s.mu.RUnlock()
	return fn(context.WithValue(ctx, txKey{}, tx), tx)
}

// Subscribe 注册事件订阅，事务提交后异步按提交顺序回调；
// 只投递注册之后提交的事件
func (s *Store) Subscribe(fn func(ledger.Event)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()

	s.startOnce.Do(func() { go s.deliverLoop() })
}

// Events 已提交的全部事件
func (s *Store) Events() []ledger.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Journal 已提交的全部钱包流水
func (s *Store) Journal() []Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.committed.journal)
}

// ============================================================================
// ledger.Tx
// ============================================================================

func (t *memTx) FindPayment(_ context.Context, orderID string) (*ledger.PaymentRecord, bool, error) {
	rec, ok := t.st.records[orderID]
	return rec, ok, nil
}

func (t *memTx) InsertPayment(_ context.Context, rec *ledger.PaymentRecord) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.st.records[rec.OrderID]; ok {
		return ledger.ErrDuplicateOrder
	}
	t.st.records[rec.OrderID] = rec.Clone()
	t.st.index = append(t.st.index, rec.OrderID)
	return nil
}

func (t *memTx) PaymentCount(context.Context) (uint64, error) {
	return uint64(len(t.st.index)), nil
}

func (t *memTx) OrderIDs(context.Context) ([]string, error) {
	return slices.Clone(t.st.index), nil
}

func (t *memTx) EachPayment(_ context.Context, fn func(rec *ledger.PaymentRecord) error) error {
	for _, id := range t.st.index {
		if err := fn(t.st.records[id].Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTx) TotalReceived(context.Context) (*uint256.Int, error) {
	return t.st.total.Clone(), nil
}

func (t *memTx) SetTotalReceived(_ context.Context, total *uint256.Int) error {
	if t.readOnly {
		return errReadOnly
	}
	t.st.total = total.Clone()
	return nil
}

func (t *memTx) Emit(_ context.Context, evt ledger.Event) error {
	if t.readOnly {
		return errReadOnly
	}
	t.pending = append(t.pending, evt)
	return nil
}

func (t *memTx) Vault() ledger.Vault {
	return (*memVault)(t)
}
