package redemption

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paz-rewards/pkg/db/option"
	"paz-rewards/pkg/db/pagination"
	"paz-rewards/pkg/errutil"
	"paz-rewards/pkg/repository"
	"paz-rewards/services/account"
	"paz-rewards/services/ledger"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	ledger   *ledger.Service
	notifier *Notifier
	expiry   time.Duration

	requests     repository.Repository[Request]
	availability repository.Repository[Availability]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Ledger   *ledger.Service
	Notifier *Notifier `optional:"true"`
	// ActivationExpiry is how long a completed request's activation code
	// stays valid.
	ActivationExpiry time.Duration `name:"activation_expiry"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		ledger:   p.Ledger,
		notifier: p.Notifier,
		expiry:   p.ActivationExpiry,

		requests:     repository.ProvideStore[Request](p.DB),
		availability: repository.ProvideStore[Availability](p.DB),
	}
}

type CreateParams struct {
	AccountID      string `json:"account_id"`
	SubscriptionID string `json:"subscription_id"`
	Duration       string `json:"duration"`
	ContactEmail   string `json:"contact_email"`
}

// Create opens a pending request and applies its paired debit as one atomic
// unit: guarded balance debit, redeem transaction, stock claim and the
// request row commit together or roll back together, so a request without
// its debit can never exist.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Request, error) {
	if p.AccountID == "" || p.SubscriptionID == "" || p.Duration == "" {
		return nil, errutil.ValidationFailed("account_id, subscription_id and duration are required")
	}
	email := strings.ToLower(strings.TrimSpace(p.ContactEmail))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errutil.ValidationFailed("a valid contact email is required")
	}

	var request *Request

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		avail, err := s.availability.WithTrx(tx).FindOne(ctx, &Availability{
			SubscriptionID: p.SubscriptionID,
			Duration:       p.Duration,
		}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to query availability", errutil.WithErr(err))
		}
		if avail == nil || !avail.InStock {
			return errutil.UnprocessableEntity("subscription is out of stock")
		}

		cost := avail.PointCost
		now := time.Now()

		var known int64
		if err := tx.Model(&account.Account{}).Where("id = ?", p.AccountID).Count(&known).Error; err != nil {
			return errutil.Internal("failed to query profile", errutil.WithErr(err))
		}
		if known == 0 {
			return errutil.NotFound("profile not found")
		}

		// the balance check lives in the WHERE clause so the remote store
		// serialises concurrent debits
		debit := tx.Model(&account.Account{}).
			Where("id = ? AND points >= ?", p.AccountID, cost).
			Updates(map[string]any{
				"points":     gorm.Expr("points - ?", cost),
				"updated_at": now,
			})
		if debit.Error != nil {
			return errutil.Internal("failed to debit account", errutil.WithErr(debit.Error))
		}
		if debit.RowsAffected == 0 {
			return errutil.UnprocessableEntity("insufficient points")
		}

		if avail.Slots > 0 {
			// taking the last slot also flips in_stock so an exhausted
			// limited row is never mistaken for an unlimited one (slots 0)
			claim := tx.Model(&Availability{}).
				Where("id = ? AND slots > 0", avail.ID).
				Updates(map[string]any{
					"slots":      gorm.Expr("slots - 1"),
					"in_stock":   gorm.Expr("CASE WHEN slots - 1 <= 0 THEN ? ELSE in_stock END", false),
					"updated_at": now,
				})
			if claim.Error != nil {
				return errutil.Internal("failed to claim stock", errutil.WithErr(claim.Error))
			}
			if claim.RowsAffected == 0 {
				return errutil.UnprocessableEntity("subscription is out of stock")
			}
		}

		request = &Request{
			ID:             s.node.Generate().String(),
			AccountID:      p.AccountID,
			SubscriptionID: p.SubscriptionID,
			Duration:       p.Duration,
			PointCost:      cost,
			Status:         StatusPending,
			ContactEmail:   email,
		}

		if _, err := s.ledger.Record(ctx, tx, ledger.RecordParams{
			AccountID:   p.AccountID,
			Kind:        ledger.KindRedeem,
			Points:      cost,
			Description: "Redemption: " + p.SubscriptionID + " (" + p.Duration + ")",
		}); err != nil {
			return err
		}

		if err := s.requests.WithTrx(tx).Create(ctx, request); err != nil {
			return errutil.Internal("failed to create redemption request", errutil.WithErr(err))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, request)

	return request, nil
}

type TransitionParams struct {
	RequestID      string `json:"request_id"`
	Status         Status `json:"status"`
	ActivationCode string `json:"activation_code"`
	Instructions   string `json:"instructions"`
}

// Transition moves a pending request to a terminal state. Completion demands
// an activation code and stamps its expiry exactly activation-expiry after
// the transition time; failure and cancellation only stamp completion. The
// debited points are not refunded automatically on failure or cancellation.
func (s *Service) Transition(ctx context.Context, p TransitionParams) (*Request, error) {
	if p.RequestID == "" {
		return nil, errutil.ValidationFailed("request_id is required")
	}
	if !p.Status.Valid() || p.Status == StatusPending {
		return nil, errutil.ValidationFailed("status must be completed, failed or cancelled")
	}
	if p.Status == StatusCompleted && strings.TrimSpace(p.ActivationCode) == "" {
		return nil, errutil.ValidationFailed("activation code is required to complete a request")
	}

	var updated *Request

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.requests.WithTrx(tx).FindOne(ctx, &Request{ID: p.RequestID}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to query redemption request", errutil.WithErr(err))
		}
		if request == nil {
			return errutil.NotFound("redemption request not found")
		}
		if request.Status.Terminal() {
			return errutil.Conflict("redemption request is already " + string(request.Status))
		}

		now := time.Now()
		updates := map[string]any{
			"status":       p.Status,
			"updated_at":   now,
			"completed_at": now,
		}

		if p.Status == StatusCompleted {
			expiresAt := now.Add(s.expiry)
			updates["activation_code"] = strings.TrimSpace(p.ActivationCode)
			updates["instructions"] = p.Instructions
			updates["expires_at"] = expiresAt
			request.ActivationCode = strings.TrimSpace(p.ActivationCode)
			request.Instructions = p.Instructions
			request.ExpiresAt = &expiresAt
		}

		if err := s.requests.WithTrx(tx).Update(ctx, p.RequestID, updates); err != nil {
			return errutil.Internal("failed to update redemption request", errutil.WithErr(err))
		}

		request.Status = p.Status
		request.CompletedAt = &now
		updated = request

		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("redemption request transitioned",
		zap.String("request_id", updated.ID),
		zap.String("status", string(updated.Status)),
	)

	s.notify(ctx, updated)

	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	request, err := s.requests.FindOne(ctx, &Request{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to query redemption request", errutil.WithErr(err))
	}
	if request == nil {
		return nil, errutil.NotFound("redemption request not found")
	}
	return request, nil
}

func (s *Service) ListByAccount(ctx context.Context, accountID string) ([]*Request, error) {
	if accountID == "" {
		return nil, errutil.ValidationFailed("account_id is required")
	}
	return s.requests.Find(ctx, &Request{AccountID: accountID}, newestFirst())
}

// ListAll pages through every request, newest first, optionally filtered by
// status. The cursor is opaque to clients and resumes at the exact row the
// previous page ended on.
func (s *Service) ListAll(ctx context.Context, status Status, page pagination.Pagination) ([]*Request, *pagination.PageInfo, error) {
	if page.Limit <= 0 || page.Limit > 250 {
		page.Limit = 50
	}

	query := s.db.WithContext(ctx).Model(&Request{})
	if status != "" {
		if !status.Valid() {
			return nil, nil, errutil.ValidationFailed("unknown status filter")
		}
		query = query.Where("status = ?", status)
	}

	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor")
		}
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var requests []*Request
	if err := query.
		Order("created_at DESC").Order("id DESC").
		Limit(page.Limit + 1).
		Find(&requests).Error; err != nil {
		return nil, nil, errutil.Internal("failed to list redemption requests", errutil.WithErr(err))
	}

	requests, hasMore := pagination.Trim(requests, page.Limit)

	info := &pagination.PageInfo{HasMore: hasMore}
	if hasMore {
		last := requests[len(requests)-1]
		next, err := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return nil, nil, errutil.Internal("failed to encode cursor", errutil.WithErr(err))
		}
		info.NextCursor = next
	}

	return requests, info, nil
}

func (s *Service) ListAvailability(ctx context.Context) ([]*Availability, error) {
	return s.availability.Find(ctx, nil, newestFirst())
}

func (s *Service) ToggleAvailability(ctx context.Context, id string) (*Availability, error) {
	avail, err := s.availability.FindOne(ctx, &Availability{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to query availability", errutil.WithErr(err))
	}
	if avail == nil {
		return nil, errutil.NotFound("availability not found")
	}

	if err := s.availability.Update(ctx, id, map[string]any{
		"in_stock":   !avail.InStock,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, errutil.Internal("failed to toggle availability", errutil.WithErr(err))
	}

	avail.InStock = !avail.InStock
	return avail, nil
}

// notify is fire-and-forget: an enqueue failure is logged and never affects
// the state transition that triggered it.
func (s *Service) notify(ctx context.Context, request *Request) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.Enqueue(ctx, NotifyPayload{
		RequestID:      request.ID,
		MaskedEmail:    account.MaskEmail(request.ContactEmail),
		SubscriptionID: request.SubscriptionID,
		Duration:       request.Duration,
		Status:         string(request.Status),
	}); err != nil {
		zap.L().Warn("failed to enqueue operator notification",
			zap.String("request_id", request.ID),
			zap.Error(err),
		)
	}
}

func newestFirst() option.QueryOption {
	return option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"created_at": true},
	})
}
