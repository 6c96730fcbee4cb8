package redemption

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Request is a member's claim against their balance for a subscription
// reward. It is created pending together with its paired debit transaction;
// status transitions are operator-driven and terminal states are final.
type Request struct {
	ID             string         `json:"id" gorm:"column:id;primaryKey"`
	AccountID      string         `json:"account_id" gorm:"column:account_id;index;not null"`
	SubscriptionID string         `json:"subscription_id" gorm:"column:subscription_id;index;not null"`
	Duration       string         `json:"duration" gorm:"column:duration;not null"`
	PointCost      int64          `json:"point_cost" gorm:"column:point_cost;not null"`
	Status         Status         `json:"status" gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	ContactEmail   string         `json:"contact_email" gorm:"column:contact_email;not null"`
	ActivationCode string         `json:"activation_code,omitempty" gorm:"column:activation_code"`
	Instructions   string         `json:"instructions,omitempty" gorm:"column:instructions;type:text"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty" gorm:"column:expires_at"`
	Metadata       datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata"`
	CreatedAt      time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (Request) TableName() string { return "redemption_requests" }

// Availability is the per (subscription, duration) stock row. The guarded
// slot decrement is what serialises concurrent claims against limited stock.
// InStock carries no column default: gorm would drop an explicit false on
// insert otherwise, and a row seeded out of stock must stay out of stock.
type Availability struct {
	ID             string    `json:"id" gorm:"column:id;primaryKey"`
	SubscriptionID string    `json:"subscription_id" gorm:"column:subscription_id;uniqueIndex:idx_sub_duration;not null"`
	Duration       string    `json:"duration" gorm:"column:duration;uniqueIndex:idx_sub_duration;not null"`
	PointCost      int64     `json:"point_cost" gorm:"column:point_cost;not null"`
	InStock        bool      `json:"in_stock" gorm:"column:in_stock"`
	Slots          int64     `json:"slots" gorm:"column:slots;not null;default:0"` // 0 = unlimited
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Availability) TableName() string { return "subscription_availability" }
