package domain

import "time"

// Player holds a coin balance and a goods count. Both are mutated only
// through the trade protocol; reads outside a trade transaction may be
// stale.
type Player struct {
	ID           int
	Name         string
	Coins        int
	Goods        int
	PasswordHash string
	CreatedAt    time.Time
}
