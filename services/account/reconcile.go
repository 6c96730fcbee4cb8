package account

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paz-rewards/pkg/db/option"
	"paz-rewards/pkg/errutil"
)

// Discrepancy is the result of checking a cached balance against the ledger.
type Discrepancy struct {
	AccountID string    `json:"account_id"`
	Cached    int64     `json:"cached"`
	Expected  int64     `json:"expected"`
	Delta     int64     `json:"delta"`
	Threshold int64     `json:"threshold"`
	Flagged   bool      `json:"flagged"`
	CheckedAt time.Time `json:"checked_at"`
}

// Check recomputes the expected balance from the full transaction history and
// flags the account when the cached value drifts past the tolerance. It never
// mutates anything; repair is a separate, explicit call.
func (s *Service) Check(ctx context.Context, accountID string) (*Discrepancy, error) {
	acc, err := s.accounts.FindOne(ctx, &Account{ID: accountID})
	if err != nil {
		return nil, errutil.Internal("failed to query profile", errutil.WithErr(err))
	}
	if acc == nil {
		return nil, errutil.NotFound("profile not found")
	}

	sums, err := s.ledger.Sum(ctx, nil, accountID)
	if err != nil {
		return nil, err
	}

	expected := sums.ExpectedBalance()
	delta := acc.Points - expected
	if delta < 0 {
		delta = -delta
	}

	d := &Discrepancy{
		AccountID: accountID,
		Cached:    acc.Points,
		Expected:  expected,
		Delta:     delta,
		Threshold: s.threshold,
		Flagged:   delta > s.threshold,
		CheckedAt: time.Now().UTC(),
	}

	if d.Flagged {
		zap.L().Warn("balance discrepancy detected",
			zap.String("account_id", accountID),
			zap.Int64("cached", d.Cached),
			zap.Int64("expected", d.Expected),
			zap.Int64("delta", d.Delta),
		)
	}

	return d, nil
}

// Repair recomputes the cached balance and cumulative earned total from the
// ledger inside one transaction, holding a row lock on the profile. The write
// is a pure function of the history, so repeated calls converge on the same
// values and never double-count.
func (s *Service) Repair(ctx context.Context, accountID string) (*Account, error) {
	var repaired *Account

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc, err := s.accounts.WithTrx(tx).FindOne(ctx, &Account{ID: accountID}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to query profile", errutil.WithErr(err))
		}
		if acc == nil {
			return errutil.NotFound("profile not found")
		}

		sums, err := s.ledger.Sum(ctx, tx, accountID)
		if err != nil {
			return err
		}

		expected := sums.ExpectedBalance()
		if err := s.accounts.WithTrx(tx).Update(ctx, accountID, map[string]any{
			"points":       expected,
			"total_earned": sums.Earned,
			"updated_at":   time.Now(),
		}); err != nil {
			return errutil.Internal("failed to repair balance", errutil.WithErr(err))
		}

		acc.Points = expected
		acc.TotalEarned = sums.Earned
		repaired = acc

		zap.L().Info("balance repaired",
			zap.String("account_id", accountID),
			zap.Int64("points", expected),
			zap.Int64("total_earned", sums.Earned),
		)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return repaired, nil
}
