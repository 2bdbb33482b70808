package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playerMarket/internal/domain"
)

// memStore implements domain.TradeStore with real per-row mutexes, so
// concurrent tests exercise the same blocking behavior row locks give in
// Postgres. Writes are staged per transaction and applied on Commit.
type memStore struct {
	mu      sync.Mutex
	players map[int]*memPlayer
	trades  []domain.TradeRecord

	begins     int
	beginErrs  []error // popped per BeginTrade, nil entries mean success
	commitErrs []error // popped per Commit
	lockOrder  []int   // ids in the order rows were locked
}

type memPlayer struct {
	mu     sync.Mutex
	player domain.Player
}

func newMemStore(players ...domain.Player) *memStore {
	s := &memStore{players: make(map[int]*memPlayer)}
	for _, p := range players {
		s.players[p.ID] = &memPlayer{player: p}
	}
	return s
}

func (s *memStore) BeginTrade(ctx context.Context) (domain.TradeTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	if len(s.beginErrs) > 0 {
		err := s.beginErrs[0]
		s.beginErrs = s.beginErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &memTx{store: s, deltas: make(map[int][2]int)}, nil
}

func (s *memStore) snapshot(id int) domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[id].player
}

type memTx struct {
	store  *memStore
	locked []*memPlayer
	deltas map[int][2]int // id -> {coinsDelta, goodsDelta}
	recs   []domain.TradeRecord
}

func (t *memTx) LockPlayer(ctx context.Context, id int) (*domain.Player, error) {
	t.store.mu.Lock()
	row, ok := t.store.players[id]
	t.store.mu.Unlock()
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}

	row.mu.Lock()
	t.locked = append(t.locked, row)

	t.store.mu.Lock()
	t.store.lockOrder = append(t.store.lockOrder, id)
	t.store.mu.Unlock()

	p := row.player
	return &p, nil
}

func (t *memTx) ApplyDeltas(ctx context.Context, id int, coinsDelta, goodsDelta int) error {
	d := t.deltas[id]
	d[0] += coinsDelta
	d[1] += goodsDelta
	t.deltas[id] = d
	return nil
}

func (t *memTx) RecordTrade(ctx context.Context, rec *domain.TradeRecord) error {
	t.recs = append(t.recs, *rec)
	return nil
}

func (t *memTx) Commit() error {
	t.store.mu.Lock()
	if len(t.store.commitErrs) > 0 {
		err := t.store.commitErrs[0]
		t.store.commitErrs = t.store.commitErrs[1:]
		if err != nil {
			t.store.mu.Unlock()
			t.release()
			return err
		}
	}
	for id, d := range t.deltas {
		row := t.store.players[id]
		row.player.Coins += d[0]
		row.player.Goods += d[1]
	}
	t.store.trades = append(t.store.trades, t.recs...)
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback() error {
	t.release()
	return nil
}

func (t *memTx) release() {
	for _, row := range t.locked {
		row.mu.Unlock()
	}
	t.locked = nil
}

func transientErr(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrTransient, msg)
}

func newTestCoordinator(store *memStore, maxAttempts int) *Coordinator {
	return NewCoordinator(store, maxAttempts, time.Millisecond, zerolog.Nop())
}

func TestTradeSuccess(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Name: "buyer", Coins: 100, Goods: 0},
		domain.Player{ID: 2, Name: "seller", Coins: 0, Goods: 100},
	)
	c := newTestCoordinator(store, 3)

	outcome, err := c.Trade(context.Background(), 1, 2, 10, 100)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", outcome.TradeID.String())
	assert.Equal(t, 1, outcome.BuyerID)
	assert.Equal(t, 2, outcome.SellerID)

	buyer := store.snapshot(1)
	seller := store.snapshot(2)
	assert.Equal(t, 0, buyer.Coins)
	assert.Equal(t, 10, buyer.Goods)
	assert.Equal(t, 100, seller.Coins)
	assert.Equal(t, 90, seller.Goods)
	assert.Len(t, store.trades, 1)
}

func TestTradeNotEnoughCoins(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Name: "buyer", Coins: 100, Goods: 0},
		domain.Player{ID: 2, Name: "seller", Coins: 0, Goods: 100},
	)
	c := newTestCoordinator(store, 3)

	outcome, err := c.Trade(context.Background(), 1, 2, 10, 500)
	assert.ErrorIs(t, err, ErrNotEnoughCoins)
	assert.Nil(t, outcome)

	// failed trade must leave both players untouched
	buyer := store.snapshot(1)
	seller := store.snapshot(2)
	assert.Equal(t, domain.Player{ID: 1, Name: "buyer", Coins: 100, Goods: 0}, buyer)
	assert.Equal(t, domain.Player{ID: 2, Name: "seller", Coins: 0, Goods: 100}, seller)
	assert.Empty(t, store.trades)
}

func TestTradeNotEnoughGoods(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Name: "buyer", Coins: 1000, Goods: 0},
		domain.Player{ID: 2, Name: "seller", Coins: 0, Goods: 5},
	)
	c := newTestCoordinator(store, 3)

	outcome, err := c.Trade(context.Background(), 1, 2, 10, 100)
	assert.ErrorIs(t, err, ErrNotEnoughGoods)
	assert.Nil(t, outcome)
	assert.Equal(t, 1000, store.snapshot(1).Coins)
	assert.Equal(t, 5, store.snapshot(2).Goods)
	assert.Empty(t, store.trades)
}

func TestTradePlayerNotFound(t *testing.T) {
	store := newMemStore(domain.Player{ID: 1, Coins: 100, Goods: 0})
	c := newTestCoordinator(store, 3)

	_, err := c.Trade(context.Background(), 1, 99, 10, 10)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	_, err = c.Trade(context.Background(), 99, 1, 10, 10)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
	assert.Empty(t, store.trades)
}

func TestTradeInputValidation(t *testing.T) {
	store := newMemStore(domain.Player{ID: 1, Coins: 100, Goods: 100})
	c := newTestCoordinator(store, 3)

	_, err := c.Trade(context.Background(), 1, 1, 10, 10)
	assert.ErrorIs(t, err, ErrSelfTrade)

	_, err = c.Trade(context.Background(), 1, 2, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.Trade(context.Background(), 1, 2, -5, 10)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.Trade(context.Background(), 1, 2, 10, -1)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	// rejected before any store access
	assert.Equal(t, 0, store.begins)
}

func TestTradeLocksAscendingByID(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 3, Coins: 100, Goods: 100},
		domain.Player{ID: 7, Coins: 100, Goods: 100},
	)
	c := newTestCoordinator(store, 3)

	// buyer has the higher id: lock order must still be ascending
	_, err := c.Trade(context.Background(), 7, 3, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, store.lockOrder)

	_, err = c.Trade(context.Background(), 3, 7, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7, 3, 7}, store.lockOrder)
}

func TestTradeRetriesTransientFailure(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Coins: 100, Goods: 0},
		domain.Player{ID: 2, Coins: 0, Goods: 100},
	)
	store.beginErrs = []error{transientErr("deadlock detected"), transientErr("lock timeout"), nil}
	c := newTestCoordinator(store, 3)

	outcome, err := c.Trade(context.Background(), 1, 2, 10, 100)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, 3, store.begins)
	assert.Equal(t, 0, store.snapshot(1).Coins)
}

func TestTradeRetryExhaustion(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Coins: 100, Goods: 0},
		domain.Player{ID: 2, Coins: 0, Goods: 100},
	)
	store.beginErrs = []error{transientErr("deadlock"), transientErr("deadlock")}
	c := newTestCoordinator(store, 2)

	outcome, err := c.Trade(context.Background(), 1, 2, 10, 100)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Nil(t, outcome)
	assert.Equal(t, 2, store.begins)
	assert.Equal(t, 100, store.snapshot(1).Coins)
	assert.Empty(t, store.trades)
}

func TestTradeStoreErrorNotRetried(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Coins: 100, Goods: 0},
		domain.Player{ID: 2, Coins: 0, Goods: 100},
	)
	storeErr := errors.New("relation players does not exist")
	store.beginErrs = []error{storeErr}
	c := newTestCoordinator(store, 3)

	_, err := c.Trade(context.Background(), 1, 2, 10, 100)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, store.begins)
}

func TestTradeCommitConflictRetried(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Coins: 100, Goods: 0},
		domain.Player{ID: 2, Coins: 0, Goods: 100},
	)
	store.commitErrs = []error{transientErr("serialization failure")}
	c := newTestCoordinator(store, 3)

	outcome, err := c.Trade(context.Background(), 1, 2, 10, 100)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	// the deltas from the failed attempt must not have been applied
	assert.Equal(t, 0, store.snapshot(1).Coins)
	assert.Equal(t, 10, store.snapshot(1).Goods)
	assert.Equal(t, 100, store.snapshot(2).Coins)
	assert.Len(t, store.trades, 1)
}

func TestTradeCancelledDuringBackoff(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Coins: 100, Goods: 0},
		domain.Player{ID: 2, Coins: 0, Goods: 100},
	)
	store.beginErrs = []error{transientErr("deadlock")}
	c := NewCoordinator(store, 3, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Trade(ctx, 1, 2, 10, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.begins)
}

func TestConcurrentTradesConserveTotals(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Name: "buyer", Coins: 100, Goods: 0},
		domain.Player{ID: 2, Name: "seller", Coins: 0, Goods: 100},
	)
	c := newTestCoordinator(store, 3)

	const trades = 10
	var wg sync.WaitGroup
	for i := 0; i < trades; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Trade(context.Background(), 1, 2, 10, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	buyer := store.snapshot(1)
	seller := store.snapshot(2)
	assert.Equal(t, 0, buyer.Coins)
	assert.Equal(t, 100, buyer.Goods)
	assert.Equal(t, 100, seller.Coins)
	assert.Equal(t, 0, seller.Goods)
	assert.Len(t, store.trades, trades)
}

func TestConcurrentOppositeTradesComplete(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Coins: 100, Goods: 100},
		domain.Player{ID: 2, Coins: 100, Goods: 100},
	)
	c := newTestCoordinator(store, 3)

	// opposite-direction trades over the same pair must all terminate;
	// ascending-id locking leaves no deadlock to time out on
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := c.Trade(context.Background(), 1, 2, 1, 1)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := c.Trade(context.Background(), 2, 1, 1, 1)
			assert.NoError(t, err)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent opposite-direction trades did not finish")
	}

	a := store.snapshot(1)
	b := store.snapshot(2)
	assert.Equal(t, 200, a.Coins+b.Coins)
	assert.Equal(t, 200, a.Goods+b.Goods)
	assert.GreaterOrEqual(t, a.Coins, 0)
	assert.GreaterOrEqual(t, a.Goods, 0)
	assert.GreaterOrEqual(t, b.Coins, 0)
	assert.GreaterOrEqual(t, b.Goods, 0)
	assert.Len(t, store.trades, 10)
}

func TestSequentialTradesDrainExactly(t *testing.T) {
	store := newMemStore(
		domain.Player{ID: 1, Coins: 30, Goods: 0},
		domain.Player{ID: 2, Coins: 0, Goods: 30},
	)
	c := newTestCoordinator(store, 3)

	for i := 0; i < 3; i++ {
		_, err := c.Trade(context.Background(), 1, 2, 10, 10)
		require.NoError(t, err)
	}

	// funds are exhausted now; the next trade must fail with zero writes
	_, err := c.Trade(context.Background(), 1, 2, 10, 10)
	assert.ErrorIs(t, err, ErrNotEnoughCoins)
	assert.Equal(t, 0, store.snapshot(1).Coins)
	assert.Equal(t, 30, store.snapshot(1).Goods)
	assert.Equal(t, 0, store.snapshot(2).Goods)
}
