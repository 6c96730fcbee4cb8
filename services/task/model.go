package task

import "time"

type Kind string

const (
	KindAd     Kind = "ad"
	KindQuiz   Kind = "quiz"
	KindSocial Kind = "social"
)

func (k Kind) Valid() bool {
	return k == KindAd || k == KindQuiz || k == KindSocial
}

// Task is an earning opportunity offered to members. Client-side countdowns
// are cosmetic gating only; the server-side quota is the real limit.
type Task struct {
	ID         string    `json:"id" gorm:"column:id;primaryKey"`
	Title      string    `json:"title" gorm:"column:title;not null"`
	Kind       Kind      `json:"kind" gorm:"column:kind;type:varchar(10);not null"`
	Points     int64     `json:"points" gorm:"column:points;not null"`
	DailyLimit int       `json:"daily_limit" gorm:"column:daily_limit;not null;default:0"` // 0 = none
	IsActive   bool      `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Task) TableName() string { return "tasks" }

// Completion records one task completion per account, the unit counted by
// the daily quota check.
type Completion struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey"`
	AccountID string    `json:"account_id" gorm:"column:account_id;index;not null"`
	TaskID    string    `json:"task_id" gorm:"column:task_id;index;not null"`
	Kind      Kind      `json:"kind" gorm:"column:kind;type:varchar(10);not null"`
	Points    int64     `json:"points" gorm:"column:points;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Completion) TableName() string { return "task_completions" }

// Allowance reports how much of today's quiz quota remains.
type Allowance struct {
	Quota     int       `json:"quota"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}
