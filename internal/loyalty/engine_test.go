package loyalty_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/repository"
)

var testNow = time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func ptrInt64(v int64) *int64 { return &v }

type fixture struct {
	repo     *repository.MemoryRepository
	campaign *model.Campaign
	ledger   *loyalty.Ledger
	engine   *loyalty.Engine
}

func newFixture(t *testing.T, rewards []model.Reward, codes loyalty.CodeGeneratorConfig) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	campaign := &model.Campaign{
		Name:     "Autumn",
		StartsAt: testNow.AddDate(0, 0, -1),
		EndsAt:   testNow.AddDate(0, 0, 1),
		Rewards:  rewards,
	}
	require.NoError(t, repo.CreateCampaign(ctx, campaign))

	ledger := loyalty.NewLedger(testClock)
	return &fixture{
		repo:     repo,
		campaign: campaign,
		ledger:   ledger,
		engine:   loyalty.NewEngine(ledger, loyalty.NewCodeGenerator(codes), 100, testClock),
	}
}

func (f *fixture) client(t *testing.T, dni string) int64 {
	t.Helper()
	c := &model.Client{DNI: dni, FirstName: "Juan", LastName: "Perez"}
	require.NoError(t, f.repo.CreateClient(context.Background(), c))
	return c.ID
}

// grantAndEvaluate начисляет баллы и проверяет порог в одной транзакции.
func (f *fixture) grantAndEvaluate(ctx context.Context, clientID, amount int64) (loyalty.AssignmentResult, error) {
	var res loyalty.AssignmentResult
	err := f.repo.InSaleTx(ctx, clientID, func(tx loyalty.SaleTx) error {
		if _, err := f.ledger.Grant(ctx, tx, clientID, f.campaign.ID, amount, f.campaign.EndsAt); err != nil {
			return err
		}
		var err error
		res, err = f.engine.Evaluate(ctx, tx, clientID, f.campaign.ID)
		return err
	})
	return res, err
}

func TestEngine_ThresholdCrossing(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "T-shirt"}}, loyalty.CodeGeneratorConfig{})
	clientID := f.client(t, "1")
	ctx := context.Background()

	res, err := f.grantAndEvaluate(ctx, clientID, 60)
	require.NoError(t, err)
	assert.False(t, res.Assigned)

	res, err = f.grantAndEvaluate(ctx, clientID, 60)
	require.NoError(t, err)
	require.True(t, res.Assigned)
	assert.Equal(t, "T-shirt", res.Reward.Description)
	assert.Equal(t, model.WinnerStatusPending, res.Winner.Status)
	assert.Len(t, res.Winner.Code, loyalty.DefaultCodeLength)

	res, err = f.grantAndEvaluate(ctx, clientID, 60)
	require.NoError(t, err)
	assert.False(t, res.Assigned, "second assignment for the same campaign")

	winners, err := f.repo.ListWinners(ctx, model.WinnerFilter{})
	require.NoError(t, err)
	assert.Len(t, winners, 1)
}

func TestEngine_ExactThreshold(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "Cap"}}, loyalty.CodeGeneratorConfig{})
	clientID := f.client(t, "1")

	res, err := f.grantAndEvaluate(context.Background(), clientID, 100)
	require.NoError(t, err)
	assert.True(t, res.Assigned)
}

func TestEngine_NoRewards(t *testing.T) {
	f := newFixture(t, nil, loyalty.CodeGeneratorConfig{})
	clientID := f.client(t, "1")

	res, err := f.grantAndEvaluate(context.Background(), clientID, 500)
	require.NoError(t, err)
	assert.False(t, res.Assigned)
}

func TestEngine_SkipsOutOfStockRewards(t *testing.T) {
	f := newFixture(t, []model.Reward{
		{Description: "Bike", StockRemaining: ptrInt64(0)},
		{Description: "Bottle", StockRemaining: ptrInt64(1)},
	}, loyalty.CodeGeneratorConfig{})
	ctx := context.Background()

	res, err := f.grantAndEvaluate(ctx, f.client(t, "1"), 100)
	require.NoError(t, err)
	require.True(t, res.Assigned)
	assert.Equal(t, "Bottle", res.Reward.Description)

	res, err = f.grantAndEvaluate(ctx, f.client(t, "2"), 100)
	require.NoError(t, err)
	assert.False(t, res.Assigned, "all rewards are out of stock")

	campaign, err := f.repo.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), *campaign.Rewards[1].StockRemaining)
}

func TestEngine_CampaignNotActive(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "Cap"}}, loyalty.CodeGeneratorConfig{})
	clientID := f.client(t, "1")
	late := func() time.Time { return f.campaign.EndsAt.Add(time.Second) }
	engine := loyalty.NewEngine(f.ledger, loyalty.NewCodeGenerator(loyalty.CodeGeneratorConfig{}), 100, late)

	err := f.repo.InSaleTx(context.Background(), clientID, func(tx loyalty.SaleTx) error {
		_, err := engine.Evaluate(context.Background(), tx, clientID, f.campaign.ID)
		return err
	})
	assert.ErrorIs(t, err, loyalty.ErrCampaignNotActive)
}

func TestEngine_CodeSpaceExhaustedRollsBackStock(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "Cap", StockRemaining: ptrInt64(5)}},
		loyalty.CodeGeneratorConfig{Alphabet: "A", Length: 1, MaxAttempts: 3})
	ctx := context.Background()

	res, err := f.grantAndEvaluate(ctx, f.client(t, "1"), 100)
	require.NoError(t, err)
	require.True(t, res.Assigned)
	assert.Equal(t, "A", res.Winner.Code)

	_, err = f.grantAndEvaluate(ctx, f.client(t, "2"), 100)
	assert.ErrorIs(t, err, loyalty.ErrCodeSpaceExhausted)

	campaign, err := f.repo.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), *campaign.Rewards[0].StockRemaining)
}

// collidingTx отвечает совпадениями кодов и при проверке, и при вставке.
type collidingTx struct {
	campaign *model.Campaign
	checks   int
	inserts  int
}

func (tx *collidingTx) AppendPoints(context.Context, model.PointEntry) error { return nil }

func (tx *collidingTx) SumValidPoints(context.Context, int64, int64, time.Time) (int64, error) {
	return 500, nil
}

func (tx *collidingTx) Campaign(context.Context, int64) (*model.Campaign, error) {
	return tx.campaign, nil
}

func (tx *collidingTx) InsertSale(context.Context, *model.Sale) error { return nil }

func (tx *collidingTx) WinnerExists(context.Context, int64, int64) (bool, error) { return false, nil }

// WinnerCodeExists пропускает каждый второй код до вставки.
func (tx *collidingTx) WinnerCodeExists(context.Context, string) (bool, error) {
	tx.checks++
	return tx.checks%2 == 1, nil
}

func (tx *collidingTx) TakeRewardStock(context.Context, int64) (bool, error) { return true, nil }

func (tx *collidingTx) InsertWinner(context.Context, *model.Winner) error {
	tx.inserts++
	return loyalty.ErrWinnerCodeTaken
}

func (tx *collidingTx) Savepoint(_ context.Context, fn func(tx loyalty.SaleTx) error) error {
	return fn(tx)
}

func TestEngine_CodeAttemptsShareOneBudget(t *testing.T) {
	const maxAttempts = 20

	tx := &collidingTx{campaign: &model.Campaign{
		ID:       1,
		Name:     "Autumn",
		StartsAt: testNow.AddDate(0, 0, -1),
		EndsAt:   testNow.AddDate(0, 0, 1),
		Rewards:  []model.Reward{{ID: 1, Description: "Mug"}},
	}}
	engine := loyalty.NewEngine(loyalty.NewLedger(testClock),
		loyalty.NewCodeGenerator(loyalty.CodeGeneratorConfig{MaxAttempts: maxAttempts}), 100, testClock)

	_, err := engine.Evaluate(context.Background(), tx, 1, 1)

	require.ErrorIs(t, err, loyalty.ErrCodeSpaceExhausted)
	assert.Equal(t, maxAttempts, tx.checks, "codes drawn")
	assert.Equal(t, maxAttempts/2, tx.inserts)
}

func TestEngine_ConcurrentEvaluationsAssignOnce(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "Cap"}}, loyalty.CodeGeneratorConfig{})
	clientID := f.client(t, "1")
	ctx := context.Background()

	const n = 16
	results := make([]loyalty.AssignmentResult, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := f.grantAndEvaluate(ctx, clientID, 100)
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	assigned := 0
	for _, r := range results {
		if r.Assigned {
			assigned++
		}
	}
	assert.Equal(t, 1, assigned)

	winners, err := f.repo.ListWinners(ctx, model.WinnerFilter{CampaignID: f.campaign.ID})
	require.NoError(t, err)
	assert.Len(t, winners, 1)
}

func TestEngine_ExpiredPointsDoNotCount(t *testing.T) {
	f := newFixture(t, []model.Reward{{Description: "Cap"}}, loyalty.CodeGeneratorConfig{})
	clientID := f.client(t, "1")
	ctx := context.Background()

	err := f.repo.InSaleTx(ctx, clientID, func(tx loyalty.SaleTx) error {
		if _, err := f.ledger.Grant(ctx, tx, clientID, f.campaign.ID, 90, testNow); err != nil {
			return err
		}
		if _, err := f.ledger.Grant(ctx, tx, clientID, f.campaign.ID, 20, f.campaign.EndsAt); err != nil {
			return err
		}
		res, err := f.engine.Evaluate(ctx, tx, clientID, f.campaign.ID)
		assert.False(t, res.Assigned)
		return err
	})
	require.NoError(t, err)
}
