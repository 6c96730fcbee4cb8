package redemption

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paz-rewards/pkg/db/pagination"
	"paz-rewards/pkg/errutil"
	"paz-rewards/services/account"
	"paz-rewards/services/ledger"
	"paz-rewards/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Request{}, &Availability{}, &account.Account{}, &ledger.Transaction{})
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	lsvc := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	svc := NewService(ServiceParams{
		DB:               db,
		Node:             node,
		Ledger:           lsvc,
		ActivationExpiry: 30 * 24 * time.Hour,
	})

	return svc, db
}

func seedAccount(t *testing.T, db *gorm.DB, id string, points int64) {
	t.Helper()
	require.NoError(t, db.Create(&account.Account{
		ID:     id,
		Email:  id + "@example.com",
		Points: points,
	}).Error)
}

func seedAvailability(t *testing.T, db *gorm.DB, subscription, duration string, cost, slots int64, inStock bool) *Availability {
	t.Helper()
	avail := &Availability{
		ID:             subscription + "-" + duration,
		SubscriptionID: subscription,
		Duration:       duration,
		PointCost:      cost,
		InStock:        inStock,
		Slots:          slots,
	}
	require.NoError(t, db.Create(avail).Error)
	return avail
}

func accountPoints(t *testing.T, db *gorm.DB, id string) int64 {
	t.Helper()
	var acc account.Account
	require.NoError(t, db.First(&acc, "id = ?", id).Error)
	return acc.Points
}

func TestCreateDebitsAndRecords(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, "acc", 500)
	seedAvailability(t, db, "spotify", "1m", 150, 0, true)

	req, err := svc.Create(ctx, CreateParams{
		AccountID:      "acc",
		SubscriptionID: "spotify",
		Duration:       "1m",
		ContactEmail:   "Player@Example.com",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, int64(150), req.PointCost)
	require.Equal(t, "player@example.com", req.ContactEmail)

	require.Equal(t, int64(350), accountPoints(t, db, "acc"))

	var tx ledger.Transaction
	require.NoError(t, db.First(&tx, "account_id = ?", "acc").Error)
	require.Equal(t, ledger.KindRedeem, tx.Kind)
	require.Equal(t, int64(150), tx.Points)
}

func TestCreateInsufficientPointsLeavesNoTrace(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, "acc", 100)
	seedAvailability(t, db, "spotify", "1m", 150, 0, true)

	_, err := svc.Create(ctx, CreateParams{
		AccountID:      "acc",
		SubscriptionID: "spotify",
		Duration:       "1m",
		ContactEmail:   "player@example.com",
	})
	require.Error(t, err)

	require.Equal(t, int64(100), accountPoints(t, db, "acc"))

	var requests, transactions int64
	require.NoError(t, db.Model(&Request{}).Count(&requests).Error)
	require.NoError(t, db.Model(&ledger.Transaction{}).Count(&transactions).Error)
	require.Equal(t, int64(0), requests)
	require.Equal(t, int64(0), transactions)
}

func TestCreateOutOfStock(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, "acc", 500)
	seedAvailability(t, db, "spotify", "1m", 150, 0, false)

	_, err := svc.Create(ctx, CreateParams{
		AccountID:      "acc",
		SubscriptionID: "spotify",
		Duration:       "1m",
		ContactEmail:   "player@example.com",
	})
	require.Error(t, err)
	require.Equal(t, int64(500), accountPoints(t, db, "acc"))
}

func TestCreateConsumesLimitedSlots(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, "acc", 500)
	avail := seedAvailability(t, db, "spotify", "1m", 100, 1, true)

	_, err := svc.Create(ctx, CreateParams{
		AccountID:      "acc",
		SubscriptionID: "spotify",
		Duration:       "1m",
		ContactEmail:   "player@example.com",
	})
	require.NoError(t, err)

	var stored Availability
	require.NoError(t, db.First(&stored, "id = ?", avail.ID).Error)
	require.Equal(t, int64(0), stored.Slots)
	require.False(t, stored.InStock)

	_, err = svc.Create(ctx, CreateParams{
		AccountID:      "acc",
		SubscriptionID: "spotify",
		Duration:       "1m",
		ContactEmail:   "player@example.com",
	})
	require.Error(t, err)
	require.Equal(t, int64(400), accountPoints(t, db, "acc"))
}

func TestCreateUnknownAccount(t *testing.T) {
	svc, db := newTestService(t)
	seedAvailability(t, db, "spotify", "1m", 150, 0, true)

	_, err := svc.Create(context.Background(), CreateParams{
		AccountID:      "ghost",
		SubscriptionID: "spotify",
		Duration:       "1m",
		ContactEmail:   "player@example.com",
	})
	require.Error(t, err)

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)

	var requests int64
	require.NoError(t, db.Model(&Request{}).Count(&requests).Error)
	require.Equal(t, int64(0), requests)
}

func TestCreateValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, "acc", 500)

	_, err := svc.Create(ctx, CreateParams{SubscriptionID: "spotify", Duration: "1m", ContactEmail: "a@b.c"})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateParams{AccountID: "acc", SubscriptionID: "spotify", Duration: "1m", ContactEmail: "not-an-email"})
	require.Error(t, err)
}

func createPending(t *testing.T, svc *Service, db *gorm.DB) *Request {
	t.Helper()
	seedAccount(t, db, "acc", 500)
	seedAvailability(t, db, "spotify", "1m", 100, 0, true)

	req, err := svc.Create(context.Background(), CreateParams{
		AccountID:      "acc",
		SubscriptionID: "spotify",
		Duration:       "1m",
		ContactEmail:   "player@example.com",
	})
	require.NoError(t, err)
	return req
}

func TestTransitionCompleteStampsExpiry(t *testing.T) {
	svc, db := newTestService(t)
	req := createPending(t, svc, db)

	updated, err := svc.Transition(context.Background(), TransitionParams{
		RequestID:      req.ID,
		Status:         StatusCompleted,
		ActivationCode: "CODE-123",
		Instructions:   "redeem at example.com/activate",
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, updated.Status)
	require.Equal(t, "CODE-123", updated.ActivationCode)
	require.NotNil(t, updated.CompletedAt)
	require.NotNil(t, updated.ExpiresAt)
	require.Equal(t, updated.CompletedAt.Add(30*24*time.Hour), *updated.ExpiresAt)

	var stored Request
	require.NoError(t, db.First(&stored, "id = ?", req.ID).Error)
	require.Equal(t, StatusCompleted, stored.Status)
	require.NotNil(t, stored.ExpiresAt)
}

func TestTransitionCompleteRequiresActivationCode(t *testing.T) {
	svc, db := newTestService(t)
	req := createPending(t, svc, db)

	_, err := svc.Transition(context.Background(), TransitionParams{
		RequestID: req.ID,
		Status:    StatusCompleted,
	})
	require.Error(t, err)

	var stored Request
	require.NoError(t, db.First(&stored, "id = ?", req.ID).Error)
	require.Equal(t, StatusPending, stored.Status)
}

func TestTransitionCancelDoesNotRefund(t *testing.T) {
	svc, db := newTestService(t)
	req := createPending(t, svc, db)
	require.Equal(t, int64(400), accountPoints(t, db, "acc"))

	updated, err := svc.Transition(context.Background(), TransitionParams{
		RequestID: req.ID,
		Status:    StatusCancelled,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, updated.Status)
	require.Nil(t, updated.ExpiresAt)

	// points stay debited, restoring them is a manual operator decision
	require.Equal(t, int64(400), accountPoints(t, db, "acc"))
}

func TestTransitionTerminalIsFinal(t *testing.T) {
	svc, db := newTestService(t)
	req := createPending(t, svc, db)
	ctx := context.Background()

	_, err := svc.Transition(ctx, TransitionParams{RequestID: req.ID, Status: StatusFailed})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, TransitionParams{
		RequestID:      req.ID,
		Status:         StatusCompleted,
		ActivationCode: "LATE",
	})
	require.Error(t, err)
}

func TestTransitionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Transition(ctx, TransitionParams{Status: StatusCompleted, ActivationCode: "x"})
	require.Error(t, err)

	_, err = svc.Transition(ctx, TransitionParams{RequestID: "req", Status: StatusPending})
	require.Error(t, err)

	_, err = svc.Transition(ctx, TransitionParams{RequestID: "req", Status: Status("shipped")})
	require.Error(t, err)

	_, err = svc.Transition(ctx, TransitionParams{RequestID: "missing", Status: StatusFailed})
	require.Error(t, err)
}

func TestListByAccountAndStatusFilter(t *testing.T) {
	svc, db := newTestService(t)
	req := createPending(t, svc, db)
	ctx := context.Background()

	mine, err := svc.ListByAccount(ctx, "acc")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, req.ID, mine[0].ID)

	pending, _, err := svc.ListAll(ctx, StatusPending, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	completed, _, err := svc.ListAll(ctx, StatusCompleted, pagination.Pagination{})
	require.NoError(t, err)
	require.Empty(t, completed)

	_, _, err = svc.ListAll(ctx, Status("bogus"), pagination.Pagination{})
	require.Error(t, err)
}

func TestListAllPagination(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&Request{
			ID:             fmt.Sprintf("req-%d", i),
			AccountID:      "acc",
			SubscriptionID: "spotify",
			Duration:       "1m",
			PointCost:      100,
			Status:         StatusPending,
			ContactEmail:   "player@example.com",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	first, info, err := svc.ListAll(ctx, "", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextCursor)
	require.Equal(t, "req-4", first[0].ID)
	require.Equal(t, "req-3", first[1].ID)

	second, info, err := svc.ListAll(ctx, "", pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "req-2", second[0].ID)
	require.Equal(t, "req-1", second[1].ID)

	last, info, err := svc.ListAll(ctx, "", pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)

	_, _, err = svc.ListAll(ctx, "", pagination.Pagination{Cursor: "not-base64!!"})
	require.Error(t, err)
}

func TestToggleAvailability(t *testing.T) {
	svc, db := newTestService(t)
	avail := seedAvailability(t, db, "spotify", "1m", 100, 0, true)

	toggled, err := svc.ToggleAvailability(context.Background(), avail.ID)
	require.NoError(t, err)
	require.False(t, toggled.InStock)

	_, err = svc.ToggleAvailability(context.Background(), "missing")
	require.Error(t, err)
}
