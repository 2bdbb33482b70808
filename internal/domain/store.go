package domain

import "context"

// TradeTx is one open transaction against the store. It is unsafe for
// concurrent use. Row locks taken by LockPlayer are held until Commit or
// Rollback; every path through a trade must end in exactly one of the two.
type TradeTx interface {
	// LockPlayer reads a player row under an exclusive row lock
	// ("select for update" semantics). Returns ErrPlayerNotFound if the id
	// does not resolve.
	LockPlayer(ctx context.Context, id int) (*Player, error)

	// ApplyDeltas adds coinsDelta and goodsDelta to a player row. The row
	// must already be locked by this transaction.
	ApplyDeltas(ctx context.Context, id int, coinsDelta, goodsDelta int) error

	// RecordTrade appends the trade to the durable history.
	RecordTrade(ctx context.Context, rec *TradeRecord) error

	Commit() error
	Rollback() error
}

// TradeStore opens trade transactions. Implementations bound the time a
// transaction may wait on a row lock.
type TradeStore interface {
	BeginTrade(ctx context.Context) (TradeTx, error)
}
