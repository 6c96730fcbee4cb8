package promo

import "time"

// PromoCode is a shared, rate-limited code redeemable once per account.
// Codes are stored lowercase; lookups normalise first, which is what makes
// matching case-insensitive.
type PromoCode struct {
	ID          string     `json:"id" gorm:"column:id;primaryKey"`
	Code        string     `json:"code" gorm:"column:code;uniqueIndex;not null"`
	Points      int64      `json:"points" gorm:"column:points;not null"`
	Description string     `json:"description" gorm:"column:description;type:text"`
	MaxUses     int64      `json:"max_uses" gorm:"column:max_uses;not null;default:0"` // 0 = unlimited
	CurrentUses int64      `json:"current_uses" gorm:"column:current_uses;not null;default:0"`
	StartsAt    *time.Time `json:"starts_at,omitempty" gorm:"column:starts_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	IsActive    bool       `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (PromoCode) TableName() string { return "promo_codes" }

// Redemption is the join row that blocks double-redemption per
// (account, code). The composite unique index is the actual guard; the
// service precheck only exists for a friendlier error.
type Redemption struct {
	ID          string    `json:"id" gorm:"column:id;primaryKey"`
	AccountID   string    `json:"account_id" gorm:"column:account_id;uniqueIndex:idx_promo_account;not null"`
	PromoCodeID string    `json:"promo_code_id" gorm:"column:promo_code_id;uniqueIndex:idx_promo_account;not null"`
	Points      int64     `json:"points" gorm:"column:points;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Redemption) TableName() string { return "promo_code_redemptions" }
