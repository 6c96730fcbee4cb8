package promo

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paz-rewards/pkg/db/option"
	"paz-rewards/pkg/errutil"
	"paz-rewards/pkg/repository"
	"paz-rewards/services/account"
	"paz-rewards/services/ledger"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	ledger *ledger.Service

	codes       repository.Repository[PromoCode]
	redemptions repository.Repository[Redemption]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Ledger *ledger.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		ledger: p.Ledger,

		codes:       repository.ProvideStore[PromoCode](p.DB),
		redemptions: repository.ProvideStore[Redemption](p.DB),
	}
}

// Redeem applies a promo code to an account as one atomic unit: redemption
// row, usage bump, earn transaction and balance credit all commit together or
// not at all. The caller may retry on transport failure only; an ambiguous
// failure must not be re-applied, which the (account, code) unique index
// enforces server-side.
func (s *Service) Redeem(ctx context.Context, accountID, rawCode string) (*Redemption, error) {
	code := strings.ToLower(strings.TrimSpace(rawCode))
	if code == "" {
		return nil, errutil.ValidationFailed("promo code is required")
	}
	if accountID == "" {
		return nil, errutil.ValidationFailed("account id is required")
	}

	var redemption *Redemption

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		promo, err := s.codes.WithTrx(tx).FindOne(ctx, &PromoCode{Code: code}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to query promo code", errutil.WithErr(err))
		}
		if promo == nil {
			return errutil.NotFound("promo code not found")
		}

		now := time.Now()
		switch {
		case !promo.IsActive:
			return errutil.UnprocessableEntity("promo code is inactive")
		case promo.StartsAt != nil && now.Before(*promo.StartsAt):
			return errutil.UnprocessableEntity("promo code is not active yet")
		case promo.ExpiresAt != nil && now.After(*promo.ExpiresAt):
			return errutil.UnprocessableEntity("promo code has expired")
		case promo.MaxUses > 0 && promo.CurrentUses >= promo.MaxUses:
			return errutil.UnprocessableEntity("promo code usage limit reached")
		}

		existing, err := s.redemptions.WithTrx(tx).FindOne(ctx, &Redemption{
			AccountID:   accountID,
			PromoCodeID: promo.ID,
		})
		if err != nil {
			return errutil.Internal("failed to query redemptions", errutil.WithErr(err))
		}
		if existing != nil {
			return errutil.Conflict("promo code already redeemed")
		}

		redemption = &Redemption{
			ID:          s.node.Generate().String(),
			AccountID:   accountID,
			PromoCodeID: promo.ID,
			Points:      promo.Points,
		}
		if err := s.redemptions.WithTrx(tx).Create(ctx, redemption); err != nil {
			// unique index hit means a concurrent redeem won the race
			return errutil.Conflict("promo code already redeemed", errutil.WithErr(err))
		}

		// guarded so a concurrent redeem cannot blow past the usage limit
		bump := tx.Model(&PromoCode{}).
			Where("id = ? AND (max_uses = 0 OR current_uses < max_uses)", promo.ID).
			Updates(map[string]any{
				"current_uses": gorm.Expr("current_uses + 1"),
				"updated_at":   now,
			})
		if bump.Error != nil {
			return errutil.Internal("failed to update promo usage", errutil.WithErr(bump.Error))
		}
		if bump.RowsAffected == 0 {
			return errutil.UnprocessableEntity("promo code usage limit reached")
		}

		if _, err := s.ledger.Record(ctx, tx, ledger.RecordParams{
			AccountID:   accountID,
			Kind:        ledger.KindEarn,
			Points:      promo.Points,
			Description: "Promo code: " + code,
		}); err != nil {
			return err
		}

		credit := tx.Model(&account.Account{}).
			Where("id = ?", accountID).
			Updates(map[string]any{
				"points":       gorm.Expr("points + ?", promo.Points),
				"total_earned": gorm.Expr("total_earned + ?", promo.Points),
				"updated_at":   now,
			})
		if credit.Error != nil {
			return errutil.Internal("failed to credit account", errutil.WithErr(credit.Error))
		}
		if credit.RowsAffected == 0 {
			return errutil.NotFound("profile not found")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("promo code redeemed",
		zap.String("account_id", accountID),
		zap.String("code", code),
		zap.Int64("points", redemption.Points),
	)

	return redemption, nil
}

// ------------------------------------------------------------------
// Admin operations
// ------------------------------------------------------------------

type CreateParams struct {
	Code        string     `json:"code"`
	Points      int64      `json:"points"`
	Description string     `json:"description"`
	MaxUses     int64      `json:"max_uses"`
	StartsAt    *time.Time `json:"starts_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*PromoCode, error) {
	code := strings.ToLower(strings.TrimSpace(p.Code))
	if code == "" {
		return nil, errutil.ValidationFailed("code is required")
	}
	if p.Points <= 0 {
		return nil, errutil.ValidationFailed("points must be > 0")
	}
	if p.MaxUses < 0 {
		return nil, errutil.ValidationFailed("max_uses must not be negative")
	}

	if existing, err := s.codes.FindOne(ctx, &PromoCode{Code: code}); err != nil {
		return nil, errutil.Internal("failed to query promo code", errutil.WithErr(err))
	} else if existing != nil {
		return nil, errutil.Conflict("promo code already exists")
	}

	promo := &PromoCode{
		ID:          s.node.Generate().String(),
		Code:        code,
		Points:      p.Points,
		Description: p.Description,
		MaxUses:     p.MaxUses,
		StartsAt:    p.StartsAt,
		ExpiresAt:   p.ExpiresAt,
		IsActive:    true,
	}
	if err := s.codes.Create(ctx, promo); err != nil {
		return nil, errutil.Internal("failed to create promo code", errutil.WithErr(err))
	}

	return promo, nil
}

func (s *Service) List(ctx context.Context) ([]*PromoCode, error) {
	return s.codes.Find(ctx, nil, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"created_at": true},
	}))
}

type UpdateParams struct {
	ID          string     `json:"id"`
	Points      *int64     `json:"points"`
	Description *string    `json:"description"`
	MaxUses     *int64     `json:"max_uses"`
	StartsAt    *time.Time `json:"starts_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (s *Service) Update(ctx context.Context, p UpdateParams) (*PromoCode, error) {
	if p.ID == "" {
		return nil, errutil.ValidationFailed("id is required")
	}

	promo, err := s.codes.FindOne(ctx, &PromoCode{ID: p.ID})
	if err != nil {
		return nil, errutil.Internal("failed to query promo code", errutil.WithErr(err))
	}
	if promo == nil {
		return nil, errutil.NotFound("promo code not found")
	}

	updates := map[string]any{"updated_at": time.Now()}
	if p.Points != nil {
		if *p.Points <= 0 {
			return nil, errutil.ValidationFailed("points must be > 0")
		}
		updates["points"] = *p.Points
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.MaxUses != nil {
		if *p.MaxUses < 0 {
			return nil, errutil.ValidationFailed("max_uses must not be negative")
		}
		updates["max_uses"] = *p.MaxUses
	}
	if p.StartsAt != nil {
		updates["starts_at"] = *p.StartsAt
	}
	if p.ExpiresAt != nil {
		updates["expires_at"] = *p.ExpiresAt
	}

	if err := s.codes.Update(ctx, p.ID, updates); err != nil {
		return nil, errutil.Internal("failed to update promo code", errutil.WithErr(err))
	}

	return s.codes.FindOne(ctx, &PromoCode{ID: p.ID})
}

func (s *Service) Toggle(ctx context.Context, id string) (*PromoCode, error) {
	promo, err := s.codes.FindOne(ctx, &PromoCode{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to query promo code", errutil.WithErr(err))
	}
	if promo == nil {
		return nil, errutil.NotFound("promo code not found")
	}

	if err := s.codes.Update(ctx, id, map[string]any{
		"is_active":  !promo.IsActive,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, errutil.Internal("failed to toggle promo code", errutil.WithErr(err))
	}

	promo.IsActive = !promo.IsActive
	return promo, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	promo, err := s.codes.FindOne(ctx, &PromoCode{ID: id})
	if err != nil {
		return errutil.Internal("failed to query promo code", errutil.WithErr(err))
	}
	if promo == nil {
		return errutil.NotFound("promo code not found")
	}

	if err := s.codes.Delete(ctx, id); err != nil {
		return errutil.Internal("failed to delete promo code", errutil.WithErr(err))
	}
	return nil
}
