package loyalty_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

func assignWinner(t *testing.T, f *fixture, dni string) *model.Winner {
	t.Helper()
	res, err := f.grantAndEvaluate(context.Background(), f.client(t, dni), 100)
	require.NoError(t, err)
	require.True(t, res.Assigned)
	return res.Winner
}

func TestRedeemer_Claim(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "Backpack"}}, loyalty.CodeGeneratorConfig{})
	w := assignWinner(t, f, "30111222")
	r := loyalty.NewRedeemer(f.repo, testClock)
	ctx := context.Background()

	res, err := r.Claim(ctx, w.Code)
	require.NoError(t, err)
	assert.Equal(t, "30111222", res.Client.DNI)
	assert.Equal(t, "Juan", res.Client.FirstName)
	assert.Equal(t, "Backpack", res.RewardDescription)
	assert.True(t, res.RewardFound)
	assert.Equal(t, testNow, res.RedeemedAt)

	_, err = r.Claim(ctx, w.Code)
	assert.ErrorIs(t, err, loyalty.ErrWinnerCodeAlreadyClaimed)

	_, err = r.Claim(ctx, "00000")
	assert.ErrorIs(t, err, loyalty.ErrWinnerCodeNotFound)
}

func TestRedeemer_RemovedRewardFallsBack(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "Backpack"}}, loyalty.CodeGeneratorConfig{})
	w := assignWinner(t, f, "1")
	ctx := context.Background()

	require.NoError(t, f.repo.RemoveCampaignReward(ctx, f.campaign.ID, w.RewardID))

	res, err := loyalty.NewRedeemer(f.repo, testClock).Claim(ctx, w.Code)
	require.NoError(t, err)
	assert.False(t, res.RewardFound)
	assert.Equal(t, loyalty.FallbackRewardDescription, res.RewardDescription)
}

func TestRedeemer_RewardResolvedByID(t *testing.T) {
	f := newFixture(t, []model.Reward{
		{Description: "First"},
		{Description: "Second"},
	}, loyalty.CodeGeneratorConfig{})
	w := assignWinner(t, f, "1")
	ctx := context.Background()

	// Удаление приза перед выданным сдвигает позиции, но не идентификаторы.
	require.NoError(t, f.repo.AddCampaignReward(ctx, f.campaign.ID, &model.Reward{Description: "Third"}))
	require.NoError(t, f.repo.RemoveCampaignReward(ctx, f.campaign.ID, f.campaign.Rewards[1].ID))

	res, err := loyalty.NewRedeemer(f.repo, testClock).Claim(ctx, w.Code)
	require.NoError(t, err)
	assert.Equal(t, "First", res.RewardDescription)
}

func TestRedeemer_ConcurrentClaimsSucceedOnce(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "Backpack"}}, loyalty.CodeGeneratorConfig{})
	w := assignWinner(t, f, "1")
	r := loyalty.NewRedeemer(f.repo, testClock)

	var ok, claimed atomic.Int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := r.Claim(context.Background(), w.Code)
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, loyalty.ErrWinnerCodeAlreadyClaimed):
				claimed.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(19), claimed.Load())
}

func TestRedeem_Transition(t *testing.T) {
	w := &model.Winner{Status: model.WinnerStatusRedeemed}
	err := loyalty.Redeem(w, testNow)
	assert.ErrorIs(t, err, loyalty.ErrWinnerCodeAlreadyClaimed)

	w = &model.Winner{Status: model.WinnerStatusPending}
	require.NoError(t, loyalty.Redeem(w, testNow))
	assert.Equal(t, model.WinnerStatusRedeemed, w.Status)
}
