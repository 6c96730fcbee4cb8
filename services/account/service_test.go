package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "  Player@Example.COM ")
	require.NoError(t, err)
	require.NotEmpty(t, acc.ID)
	require.Equal(t, "player@example.com", acc.Email)
	require.Equal(t, int64(0), acc.Points)
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "")
	require.Error(t, err)

	_, err = svc.Register(ctx, "not-an-email")
	require.Error(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "player@example.com")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "PLAYER@example.com")
	require.Error(t, err)
}

func TestGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "player@example.com")
	require.NoError(t, err)

	got, err := svc.Get(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, acc.Email, got.Email)

	_, err = svc.Get(ctx, "missing")
	require.Error(t, err)
}

func TestUpdateContact(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "old@example.com")
	require.NoError(t, err)

	updated, err := svc.UpdateContact(ctx, acc.ID, "New@Example.com")
	require.NoError(t, err)
	require.Equal(t, "new@example.com", updated.Email)

	got, err := svc.Get(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", got.Email)
}

func TestLeaderboardRanksByTotalEarned(t *testing.T) {
	svc, db := newTestService(t)

	for _, a := range []Account{
		{ID: "a", Email: "alice@example.com", TotalEarned: 50},
		{ID: "b", Email: "bob@example.com", TotalEarned: 200},
		{ID: "c", Email: "carol@example.com", TotalEarned: 120},
	} {
		require.NoError(t, db.Create(&a).Error)
	}

	entries, err := svc.Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, int64(200), entries[0].TotalEarned)
	require.Equal(t, "bo***@example.com", entries[0].Email)

	require.Equal(t, 2, entries[1].Rank)
	require.Equal(t, int64(120), entries[1].TotalEarned)
}

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "pl***@example.com", MaskEmail("player@example.com"))
	require.Equal(t, "a***@example.com", MaskEmail("ab@example.com"))
	require.Equal(t, "a***@example.com", MaskEmail("a@example.com"))
	require.Equal(t, "***", MaskEmail("no-at-sign"))
	require.Equal(t, "***", MaskEmail(""))
}
