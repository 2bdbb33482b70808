package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"playerMarket/internal/domain"
)

var (
	ErrNotEnoughCoins   = errors.New("buyer does not have enough coins")
	ErrNotEnoughGoods   = errors.New("seller does not have enough goods")
	ErrSelfTrade        = errors.New("buyer and seller must be different players")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidPrice     = errors.New("price must not be negative")
	ErrStoreUnavailable = errors.New("store unavailable, trade not applied")
)

// Coordinator executes goods-for-coins trades between two players as a
// single all-or-nothing transaction. A failed trade performs zero writes;
// a successful one moves amount goods from seller to buyer and price
// coins from buyer to seller, committed together.
//
// Transient store failures (deadlock, lock timeout, lost connection) are
// retried with exponential backoff up to maxAttempts; business-rule
// failures are returned to the caller as-is and never retried.
type Coordinator struct {
	store       domain.TradeStore
	maxAttempts int
	backoffBase time.Duration
	log         zerolog.Logger
}

func NewCoordinator(store domain.TradeStore, maxAttempts int, backoffBase time.Duration, log zerolog.Logger) *Coordinator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Coordinator{
		store:       store,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		log:         log,
	}
}

func (c *Coordinator) Trade(ctx context.Context, buyerID, sellerID, amount, price int) (*domain.TradeOutcome, error) {
	if buyerID == sellerID {
		return nil, ErrSelfTrade
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithJitter(ctx, c.backoffBase, attempt); err != nil {
				return nil, err
			}
			c.log.Warn().
				Int("buyer_id", buyerID).
				Int("seller_id", sellerID).
				Int("attempt", attempt+1).
				Err(lastErr).
				Msg("retrying trade after transient store failure")
		}

		outcome, err := c.tradeOnce(ctx, buyerID, sellerID, amount, price)
		if err == nil {
			c.log.Info().
				Str("trade_id", outcome.TradeID.String()).
				Int("buyer_id", buyerID).
				Int("seller_id", sellerID).
				Int("amount", amount).
				Int("price", price).
				Msg("trade committed")
			return outcome, nil
		}
		if !errors.Is(err, domain.ErrTransient) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrStoreUnavailable, c.maxAttempts, lastErr)
}

// tradeOnce runs one transaction attempt. Rows are locked in ascending id
// order regardless of role, so two concurrent opposite-direction trades
// over the same pair can never deadlock on each other.
func (c *Coordinator) tradeOnce(ctx context.Context, buyerID, sellerID, amount, price int) (*domain.TradeOutcome, error) {
	tx, err := c.store.BeginTrade(ctx)
	if err != nil {
		return nil, err
	}

	firstID, secondID := buyerID, sellerID
	if sellerID < buyerID {
		firstID, secondID = sellerID, buyerID
	}
	first, err := tx.LockPlayer(ctx, firstID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	second, err := tx.LockPlayer(ctx, secondID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	buyer, seller := first, second
	if firstID != buyerID {
		buyer, seller = second, first
	}

	if buyer.Coins < price {
		_ = tx.Rollback()
		return nil, ErrNotEnoughCoins
	}
	if seller.Goods < amount {
		_ = tx.Rollback()
		return nil, ErrNotEnoughGoods
	}

	if err := tx.ApplyDeltas(ctx, buyerID, -price, amount); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.ApplyDeltas(ctx, sellerID, price, -amount); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	rec := &domain.TradeRecord{
		TradeID:  uuid.New(),
		BuyerID:  buyerID,
		SellerID: sellerID,
		Amount:   amount,
		Price:    price,
	}
	if err := tx.RecordTrade(ctx, rec); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.TradeOutcome{
		TradeID:  rec.TradeID,
		BuyerID:  buyerID,
		SellerID: sellerID,
		Amount:   amount,
		Price:    price,
	}, nil
}

// sleepWithJitter waits base * 2^(attempt-1) plus a random jitter of up
// to one base, or returns early if the context is cancelled.
func sleepWithJitter(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		return nil
	}
	delay := base << uint(attempt-1)
	delay += time.Duration(rand.Int63n(int64(base)))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
