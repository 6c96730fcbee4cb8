package ledger

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paz-rewards/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Transaction{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, nil, RecordParams{AccountID: "acc", Kind: "bonus", Points: 10})
	require.Error(t, err)

	_, err = svc.Record(ctx, nil, RecordParams{AccountID: "acc", Kind: KindEarn, Points: 0})
	require.Error(t, err)

	_, err = svc.Record(ctx, nil, RecordParams{AccountID: "acc", Kind: KindRedeem, Points: -5})
	require.Error(t, err)
}

func TestRecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Record(ctx, nil, RecordParams{AccountID: "acc", Kind: KindEarn, Points: 100, Description: "Task: quiz"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := svc.Record(ctx, nil, RecordParams{AccountID: "acc", Kind: KindRedeem, Points: 40})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	entries, err := svc.List(ctx, "acc", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestSumAggregatesPerKind(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, p := range []RecordParams{
		{AccountID: "acc", Kind: KindEarn, Points: 100},
		{AccountID: "acc", Kind: KindEarn, Points: 25},
		{AccountID: "acc", Kind: KindRedeem, Points: 40},
		{AccountID: "other", Kind: KindEarn, Points: 999},
	} {
		_, err := svc.Record(ctx, nil, p)
		require.NoError(t, err)
	}

	sums, err := svc.Sum(ctx, nil, "acc")
	require.NoError(t, err)
	require.Equal(t, int64(125), sums.Earned)
	require.Equal(t, int64(40), sums.Redeemed)
	require.Equal(t, int64(85), sums.ExpectedBalance())
}

func TestSumEmptyHistory(t *testing.T) {
	svc := newTestService(t)

	sums, err := svc.Sum(context.Background(), nil, "nobody")
	require.NoError(t, err)
	require.Equal(t, int64(0), sums.Earned)
	require.Equal(t, int64(0), sums.Redeemed)
	require.Equal(t, int64(0), sums.ExpectedBalance())
}

func TestExpectedBalanceClampsAtZero(t *testing.T) {
	require.Equal(t, int64(0), Sums{Earned: 10, Redeemed: 50}.ExpectedBalance())
	require.Equal(t, int64(0), Sums{}.ExpectedBalance())
	require.Equal(t, int64(60), Sums{Earned: 100, Redeemed: 40}.ExpectedBalance())
}
