package domain

import (
	"time"

	"github.com/google/uuid"
)

// TradeOutcome describes a committed trade.
type TradeOutcome struct {
	TradeID  uuid.UUID
	BuyerID  int
	SellerID int
	Amount   int
	Price    int
}

// TradeRecord is the durable history row written in the same transaction
// as the balance mutations.
type TradeRecord struct {
	ID        int
	TradeID   uuid.UUID
	BuyerID   int
	SellerID  int
	Amount    int
	Price     int
	CreatedAt time.Time
}
