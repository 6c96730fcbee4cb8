package option

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates the gorm query built by a repository call.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single comparison condition to the query.
func ApplyOperator(c Condition) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where(c.Field+" "+string(c.Operator)+" ?", c.Value)
	}
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	// Allow lists the sortable columns. An empty allow-list rejects nothing,
	// an unlisted column falls back to created_at.
	Allow map[string]bool
}

func WithSortBy(s QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		column := s.SortBy
		if column == "" {
			column = "created_at"
		}
		if len(s.Allow) > 0 && !s.Allow[column] {
			column = "created_at"
		}

		order := "ASC"
		if strings.EqualFold(s.OrderBy, "desc") {
			order = "DESC"
		}

		return tx.Order(column + " " + order)
	}
}

func WithLimit(limit int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return tx
		}
		return tx.Limit(limit)
	}
}

// WithLockingUpdate takes a row-level lock for the current transaction.
func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

// LockingUpdate adds FOR UPDATE on dialects that support it. SQLite locks
// the whole database per write transaction, so the clause is skipped there.
func LockingUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
