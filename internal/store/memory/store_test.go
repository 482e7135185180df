package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"payledger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
)

func mint(t *testing.T, s *Store, addr ledger.Address, amount uint64) {
	t.Helper()
	require.NoError(t, s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Mint(ctx, addr, uint256.NewInt(amount))
	}))
}

func balance(t *testing.T, s *Store, addr ledger.Address) uint64 {
	t.Helper()
	var bal *uint256.Int
	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		var err error
		bal, err = tx.Vault().BalanceOf(ctx, addr)
		return err
	}))
	return bal.Uint64()
}

func TestTransaction_RollbackDiscardsEverything(t *testing.T) {
	s := New(nil)
	mint(t, s, alice, 100)
	boom := errors.New("boom")

	err := s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		require.NoError(t, tx.Vault().Send(ctx, alice, bob, uint256.NewInt(60), ledger.KindTransfer))
		require.NoError(t, tx.InsertPayment(ctx, &ledger.PaymentRecord{OrderID: "o1", Amount: uint256.NewInt(1)}))
		require.NoError(t, tx.SetTotalReceived(ctx, uint256.NewInt(1)))
		require.NoError(t, tx.Emit(ctx, ledger.PaymentReceived{OrderID: "o1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, uint64(100), balance(t, s, alice))
	assert.Equal(t, uint64(0), balance(t, s, bob))
	assert.Empty(t, s.Events())
	assert.Len(t, s.Journal(), 1)

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		_, ok, err := tx.FindPayment(ctx, "o1")
		assert.False(t, ok)
		n, _ := tx.PaymentCount(ctx)
		assert.Zero(t, n)
		total, _ := tx.TotalReceived(ctx)
		assert.True(t, total.IsZero())
		return err
	}))
}

func TestTransaction_NestedJoinsOuter(t *testing.T) {
	s := New(nil)
	mint(t, s, alice, 100)
	ctx := context.Background()

	err := s.Transaction(ctx, func(ctx context.Context, outer ledger.Tx) error {
		require.NoError(t, outer.Vault().Send(ctx, alice, bob, uint256.NewInt(30), ledger.KindTransfer))

		// 嵌套事务看得到外层未提交的修改
		return s.Transaction(ctx, func(ctx context.Context, inner ledger.Tx) error {
			bal, err := inner.Vault().BalanceOf(ctx, bob)
			require.NoError(t, err)
			assert.Equal(t, uint64(30), bal.Uint64())

			// View 也读事务内状态
			return s.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
				bal, err := tx.Vault().BalanceOf(ctx, alice)
				assert.Equal(t, uint64(70), bal.Uint64())
				return err
			})
		})
	})
	require.NoError(t, err)

	// 内层失败导致外层整体回滚
	boom := errors.New("boom")
	err = s.Transaction(ctx, func(ctx context.Context, outer ledger.Tx) error {
		require.NoError(t, outer.Vault().Send(ctx, alice, bob, uint256.NewInt(70), ledger.KindTransfer))
		return s.Transaction(ctx, func(context.Context, ledger.Tx) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(70), balance(t, s, alice))
	assert.Equal(t, uint64(30), balance(t, s, bob))
}

func TestView_IsReadOnly(t *testing.T) {
	s := New(nil)
	mint(t, s, alice, 10)

	err := s.View(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Send(ctx, alice, bob, uint256.NewInt(1), ledger.KindTransfer)
	})
	assert.Error(t, err)

	err = s.View(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertPayment(ctx, &ledger.PaymentRecord{OrderID: "x", Amount: uint256.NewInt(1)})
	})
	assert.Error(t, err)
	assert.Equal(t, uint64(10), balance(t, s, alice))
}

func TestSubscribe_DeliveredAfterCommitInOrder(t *testing.T) {
	s := New(nil)
	got := make(chan string, 10)
	errs := make(chan error, 10)
	s.Subscribe(func(evt ledger.Event) {
		// 回调里可以再开写事务，不会死锁
		errs <- s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
			return tx.Vault().Mint(ctx, alice, uint256.NewInt(1))
		})
		got <- evt.(ledger.PaymentReceived).OrderID
	})

	require.NoError(t, s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		require.NoError(t, tx.Emit(ctx, ledger.PaymentReceived{OrderID: "a"}))
		return tx.Emit(ctx, ledger.PaymentReceived{OrderID: "b"})
	}))
	_ = s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		_ = tx.Emit(ctx, ledger.PaymentReceived{OrderID: "rolled-back"})
		return errors.New("no")
	})
	require.NoError(t, s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Emit(ctx, ledger.PaymentReceived{OrderID: "c"})
	}))

	var order []string
	for len(order) < 3 {
		select {
		case id := <-got:
			order = append(order, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("事件未送达: %v", order)
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
	for i := 0; i < 3; i++ {
		require.NoError(t, <-errs)
	}
	assert.Len(t, s.Events(), 3)
	assert.Equal(t, uint64(3), balance(t, s, alice))
}

func TestSubscribe_SlowSubscriberDoesNotBlockCommit(t *testing.T) {
	s := New(nil)
	release := make(chan struct{})
	s.Subscribe(func(ledger.Event) { <-release })
	defer close(release)

	// 订阅者阻塞不影响后续事务提交
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
			return tx.Emit(ctx, ledger.PaymentReceived{OrderID: "x"})
		}))
	}
	assert.Len(t, s.Events(), 3)
}

func TestSend_RunsReceiverHook(t *testing.T) {
	receivers := ledger.NewReceivers()
	s := New(receivers)
	mint(t, s, alice, 10)

	rejected := errors.New("rejected")
	receivers.Register(bob, func(context.Context, ledger.Address, *uint256.Int) error { return rejected })

	err := s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Send(ctx, alice, bob, uint256.NewInt(5), ledger.KindTransfer)
	})
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, uint64(10), balance(t, s, alice))

	// Attach 不触发回调
	err = s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Attach(ctx, alice, bob, uint256.NewInt(5), "order")
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance(t, s, bob))

	journal := s.Journal()
	last := journal[len(journal)-1]
	assert.Equal(t, ledger.KindPayment, last.Kind)
	assert.Equal(t, "order", last.Ref)

	receivers.Unregister(bob)
	require.NoError(t, s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Vault().Send(ctx, alice, bob, uint256.NewInt(5), ledger.KindTransfer)
	}))
	assert.Equal(t, uint64(10), balance(t, s, bob))
}

func TestMint_Overflow(t *testing.T) {
	s := New(nil)
	err := s.Transaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.Vault().Mint(ctx, alice, new(uint256.Int).SetAllOne()); err != nil {
			return err
		}
		return tx.Vault().Mint(ctx, alice, uint256.NewInt(1))
	})
	assert.ErrorIs(t, err, ledger.ErrOverflow)
	assert.Zero(t, balance(t, s, alice))
}
