package account

import "time"

// Account mirrors the profiles table. Points is a cached balance derived from
// the ledger; TotalEarned only ever grows.
type Account struct {
	ID          string    `json:"id" gorm:"column:id;primaryKey"`
	Email       string    `json:"email" gorm:"column:email;uniqueIndex;not null"`
	Points      int64     `json:"points" gorm:"column:points;not null;default:0"`
	TotalEarned int64     `json:"total_earned" gorm:"column:total_earned;not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string { return "profiles" }

// LeaderboardEntry is one ranked row of the cumulative-earnings leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank" gorm:"-"`
	AccountID   string `json:"account_id" gorm:"column:id"`
	Email       string `json:"email" gorm:"column:email"`
	TotalEarned int64  `json:"total_earned" gorm:"column:total_earned"`
}
