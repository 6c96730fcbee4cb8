package ledger

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"paz-rewards/pkg/db/option"
	"paz-rewards/pkg/errutil"
	"paz-rewards/pkg/repository"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	transactions repository.Repository[Transaction]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		transactions: repository.ProvideStore[Transaction](p.DB),
	}
}

type RecordParams struct {
	AccountID   string
	Kind        Kind
	Points      int64
	Description string
	Metadata    datatypes.JSON
}

// Record appends a ledger entry. It runs on the given tx when one is passed
// so callers can make the entry part of a larger atomic unit.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, p RecordParams) (*Transaction, error) {
	if !p.Kind.Valid() {
		return nil, errutil.BadRequest("unsupported transaction kind")
	}
	if p.Points <= 0 {
		return nil, errutil.BadRequest("points must be > 0")
	}

	entry := &Transaction{
		ID:          s.node.Generate().String(),
		AccountID:   p.AccountID,
		Kind:        p.Kind,
		Points:      p.Points,
		Description: p.Description,
		Metadata:    p.Metadata,
	}

	if err := s.transactions.WithTrx(tx).Create(ctx, entry); err != nil {
		return nil, errutil.Internal("failed to record transaction", errutil.WithErr(err))
	}

	return entry, nil
}

// List returns an account's full history, newest first.
func (s *Service) List(ctx context.Context, accountID string, limit int) ([]*Transaction, error) {
	return s.transactions.Find(ctx, &Transaction{AccountID: accountID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
		option.WithLimit(limit),
	)
}

// Sum aggregates the full history for one account. When tx is non-nil the
// aggregation joins the caller's transaction and sees its locked snapshot.
func (s *Service) Sum(ctx context.Context, tx *gorm.DB, accountID string) (Sums, error) {
	db := s.db
	if tx != nil {
		db = tx
	}

	var sums Sums
	err := db.WithContext(ctx).Model(&Transaction{}).
		Select(
			"COALESCE(SUM(CASE WHEN kind = ? THEN points ELSE 0 END), 0) AS earned, "+
				"COALESCE(SUM(CASE WHEN kind = ? THEN points ELSE 0 END), 0) AS redeemed",
			KindEarn, KindRedeem,
		).
		Where("account_id = ?", accountID).
		Scan(&sums).Error
	if err != nil {
		return Sums{}, errutil.Internal("failed to sum transactions", errutil.WithErr(err))
	}

	return sums, nil
}
