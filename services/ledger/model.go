package ledger

import (
	"time"

	"gorm.io/datatypes"
)

type Kind string

const (
	KindEarn   Kind = "earn"
	KindRedeem Kind = "redeem"
)

func (k Kind) Valid() bool {
	return k == KindEarn || k == KindRedeem
}

// Transaction is an append-only ledger entry. Rows are never updated or
// deleted; compensation happens by rolling back the surrounding database
// transaction before the row is durable.
type Transaction struct {
	ID          string         `json:"id" gorm:"column:id;primaryKey"`
	AccountID   string         `json:"account_id" gorm:"column:account_id;index;not null"`
	Kind        Kind           `json:"kind" gorm:"column:kind;type:varchar(10);not null"`
	Points      int64          `json:"points" gorm:"column:points;not null"`
	Description string         `json:"description" gorm:"column:description;type:text"`
	Metadata    datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata"`
	CreatedAt   time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Transaction) TableName() string { return "transactions" }

// Sums holds the per-kind aggregates for one account's full history.
type Sums struct {
	Earned   int64
	Redeemed int64
}

// ExpectedBalance derives the balance the cached profile value must match:
// total earned minus total redeemed, clamped at zero.
func (s Sums) ExpectedBalance() int64 {
	expected := s.Earned - s.Redeemed
	if expected < 0 {
		return 0
	}
	return expected
}
