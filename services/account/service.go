package account

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paz-rewards/pkg/errutil"
	"paz-rewards/pkg/repository"
	"paz-rewards/services/ledger"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	ledger    *ledger.Service
	threshold int64

	accounts repository.Repository[Account]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Ledger *ledger.Service
	// Threshold is the reconcile discrepancy tolerance, in points.
	Threshold int64 `name:"reconcile_threshold"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		ledger:    p.Ledger,
		threshold: p.Threshold,

		accounts: repository.ProvideStore[Account](p.DB),
	}
}

func (s *Service) Register(ctx context.Context, email string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errutil.ValidationFailed("a valid email is required")
	}

	if existing, err := s.accounts.FindOne(ctx, &Account{Email: email}); err != nil {
		return nil, errutil.Internal("failed to query profile", errutil.WithErr(err))
	} else if existing != nil {
		return nil, errutil.Conflict("profile already exists")
	}

	acc := &Account{
		ID:    s.node.Generate().String(),
		Email: email,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, errutil.Internal("failed to create profile", errutil.WithErr(err))
	}

	return acc, nil
}

// Get loads a profile, retrying transient failures with exponential backoff.
// Validation-class errors (unknown id) are not retried.
func (s *Service) Get(ctx context.Context, accountID string) (*Account, error) {
	var acc *Account

	operation := func() error {
		found, err := s.accounts.FindOne(ctx, &Account{ID: accountID})
		if err != nil {
			return err
		}
		acc = found
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		zap.L().Error("profile refresh failed after retries", zap.String("account_id", accountID), zap.Error(err))
		return nil, errutil.ServiceUnavailable("profile temporarily unavailable", errutil.WithErr(err))
	}

	if acc == nil {
		return nil, errutil.NotFound("profile not found")
	}

	return acc, nil
}

func (s *Service) UpdateContact(ctx context.Context, accountID, email string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errutil.ValidationFailed("a valid email is required")
	}

	acc, err := s.accounts.FindOne(ctx, &Account{ID: accountID})
	if err != nil {
		return nil, errutil.Internal("failed to query profile", errutil.WithErr(err))
	}
	if acc == nil {
		return nil, errutil.NotFound("profile not found")
	}

	if err := s.accounts.Update(ctx, accountID, map[string]any{
		"email":      email,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, errutil.Internal("failed to update profile", errutil.WithErr(err))
	}

	acc.Email = email
	return acc, nil
}

// Leaderboard ranks accounts by cumulative earned points.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var entries []LeaderboardEntry
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Select("id", "email", "total_earned").
		Order("total_earned DESC").
		Limit(limit).
		Scan(&entries).Error; err != nil {
		return nil, errutil.Internal("failed to query leaderboard", errutil.WithErr(err))
	}

	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Email = MaskEmail(entries[i].Email)
	}

	return entries, nil
}

// MaskEmail hides most of the local part so leaderboards and operator
// notifications never expose a full address.
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}

	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return local[:1] + "***" + domain
	}
	return local[:2] + "***" + domain
}
