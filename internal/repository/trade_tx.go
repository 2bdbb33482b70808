package repository

import (
	"context"
	"database/sql"
	"fmt"

	"playerMarket/internal/domain"
)

// TradeTx wraps one *sql.Tx used by the trade protocol. Row locks taken
// by LockPlayer are held until Commit or Rollback.
type TradeTx struct {
	tx *sql.Tx
}

// BeginTrade opens a transaction and bounds lock waits with a local
// lock_timeout, so a blocked SELECT ... FOR UPDATE fails instead of
// waiting forever. A lock timeout surfaces as a transient error.
func (s *PostgresStore) BeginTrade(ctx context.Context) (domain.TradeTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err, "repo: BeginTrade")
	}
	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms';", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return nil, classify(err, "repo: BeginTrade lock_timeout")
		}
	}
	return &TradeTx{tx: tx}, nil
}

func (t *TradeTx) LockPlayer(ctx context.Context, id int) (*domain.Player, error) {
	query := `SELECT id, name, coins, goods FROM players WHERE id = $1 FOR UPDATE;`
	row := t.tx.QueryRowContext(ctx, query, id)
	p := &domain.Player{}
	if err := row.Scan(&p.ID, &p.Name, &p.Coins, &p.Goods); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, classify(err, "repo: LockPlayer")
	}
	return p, nil
}

func (t *TradeTx) ApplyDeltas(ctx context.Context, id int, coinsDelta, goodsDelta int) error {
	query := `UPDATE players SET coins = coins + $1, goods = goods + $2 WHERE id = $3;`
	res, err := t.tx.ExecContext(ctx, query, coinsDelta, goodsDelta, id)
	if err != nil {
		return classify(err, "repo: ApplyDeltas")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

func (t *TradeTx) RecordTrade(ctx context.Context, rec *domain.TradeRecord) error {
	query := `INSERT INTO trades (trade_id, buyer_id, seller_id, amount, price) VALUES ($1, $2, $3, $4, $5);`
	if _, err := t.tx.ExecContext(ctx, query, rec.TradeID, rec.BuyerID, rec.SellerID, rec.Amount, rec.Price); err != nil {
		return classify(err, "repo: RecordTrade")
	}
	return nil
}

func (t *TradeTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify(err, "repo: Commit")
	}
	return nil
}

func (t *TradeTx) Rollback() error {
	return t.tx.Rollback()
}
