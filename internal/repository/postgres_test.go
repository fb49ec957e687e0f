package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "serialization failure then success",
			errs:      []error{&pgconn.PgError{Code: pgerrcode.SerializationFailure}, nil},
			wantCalls: 2,
		},
		{
			name:      "deadlock then success",
			errs:      []error{&pgconn.PgError{Code: pgerrcode.DeadlockDetected}, nil},
			wantCalls: 2,
		},
		{
			name:      "dropped connection then success",
			errs:      []error{errors.New("write tcp: broken pipe"), nil},
			wantCalls: 2,
		},
		{
			name:      "unique violation is not retried",
			errs:      []error{&pgconn.PgError{Code: pgerrcode.UniqueViolation}},
			wantCalls: 1,
		},
		{
			name: "conflict after all attempts",
			errs: []error{
				&pgconn.PgError{Code: pgerrcode.SerializationFailure},
				&pgconn.PgError{Code: pgerrcode.SerializationFailure},
				&pgconn.PgError{Code: pgerrcode.SerializationFailure},
			},
			wantCalls: 3,
			wantErr:   loyalty.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &PostgresRepository{delays: []time.Duration{time.Millisecond, time.Millisecond}}

			calls := 0
			err := r.withRetry(context.Background(), func() error {
				err := tt.errs[calls]
				calls++
				return err
			})

			assert.Equal(t, tt.wantCalls, calls)
			last := tt.errs[len(tt.errs)-1]
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case last == nil:
				assert.NoError(t, err)
			default:
				assert.ErrorIs(t, err, last)
			}
		})
	}
}

func TestWithRetry_StopsOnCanceledContext(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{time.Hour}}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.withRetry(ctx, func() error {
		calls++
		cancel()
		return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// newTestPostgres подключается к БД из DATABASE_URI. Без неё тест пропускается.
func newTestPostgres(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("DATABASE_URI")
	if dsn == "" {
		t.Skip("DATABASE_URI is not set")
	}

	repo, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// uniq возвращает короткий суффикс, чтобы повторные запуски не пересекались по уникальным ключам.
func uniq() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

type pgFixture struct {
	first, second *model.Client
	product       *model.Product
	campaign      *model.Campaign
}

func seedPostgres(t *testing.T, repo *PostgresRepository, stock *int64) pgFixture {
	t.Helper()
	ctx := context.Background()
	suffix := uniq()

	first := &model.Client{DNI: "A" + suffix, FirstName: "Ana", LastName: "Diaz"}
	require.NoError(t, repo.CreateClient(ctx, first))
	second := &model.Client{DNI: "B" + suffix, FirstName: "Luis", LastName: "Paz"}
	require.NoError(t, repo.CreateClient(ctx, second))

	product := &model.Product{Code: "P-" + suffix, Name: "Coffee", Active: true}
	require.NoError(t, repo.CreateProduct(ctx, product))

	now := time.Now()
	campaign := &model.Campaign{
		Name:     "Spring " + suffix,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
		Products: []model.CampaignProduct{{ProductID: product.ID, Points: 60}},
		Rewards:  []model.Reward{{Description: "Mug", StockRemaining: stock}},
	}
	require.NoError(t, repo.CreateCampaign(ctx, campaign))

	return pgFixture{first: first, second: second, product: product, campaign: campaign}
}

func TestPostgresRepository_ConstraintMapping(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()
	fx := seedPostgres(t, repo, nil)

	err := repo.CreateClient(ctx, &model.Client{DNI: fx.first.DNI, FirstName: "x", LastName: "y"})
	assert.ErrorIs(t, err, loyalty.ErrClientExists)

	fx.second.DNI = fx.first.DNI
	err = repo.UpdateClient(ctx, fx.second)
	assert.ErrorIs(t, err, loyalty.ErrClientExists)

	err = repo.CreateProduct(ctx, &model.Product{Code: fx.product.Code, Name: "dup"})
	assert.ErrorIs(t, err, loyalty.ErrProductExists)

	err = repo.AddCampaignProduct(ctx, fx.campaign.ID, model.CampaignProduct{ProductID: fx.product.ID, Points: 5})
	assert.ErrorIs(t, err, loyalty.ErrProductInCampaign)

	now := time.Now()
	err = repo.CreateCampaign(ctx, &model.Campaign{Name: "bad", StartsAt: now, EndsAt: now})
	assert.ErrorIs(t, err, loyalty.ErrInvalidCampaignDates)

	err = repo.InSaleTx(ctx, -1, func(tx loyalty.SaleTx) error { return nil })
	assert.ErrorIs(t, err, loyalty.ErrClientNotFound)
}

func TestPostgresRepository_InsertWinnerKeepsTxUsable(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()
	fx := seedPostgres(t, repo, ptrInt64(1))
	rewardID := fx.campaign.Rewards[0].ID
	taken := "T" + uniq()
	fresh := "F" + uniq()

	require.NoError(t, repo.InSaleTx(ctx, fx.first.ID, func(tx loyalty.SaleTx) error {
		ok, err := tx.TakeRewardStock(ctx, rewardID)
		require.NoError(t, err)
		require.True(t, ok)
		return tx.InsertWinner(ctx, &model.Winner{
			ClientID: fx.first.ID, CampaignID: fx.campaign.ID, RewardID: rewardID,
			Code: taken, Status: model.WinnerStatusPending,
		})
	}))

	err := repo.InSaleTx(ctx, fx.second.ID, func(tx loyalty.SaleTx) error {
		require.NoError(t, tx.AppendPoints(ctx, model.PointEntry{
			ClientID: fx.second.ID, CampaignID: fx.campaign.ID, Amount: 60,
			GrantedAt: time.Now(), ExpiresAt: fx.campaign.EndsAt,
		}))

		ok, err := tx.TakeRewardStock(ctx, rewardID)
		require.NoError(t, err)
		assert.False(t, ok, "stock of one was already taken")

		exists, err := tx.WinnerCodeExists(ctx, taken)
		require.NoError(t, err)
		assert.True(t, exists)

		err = tx.InsertWinner(ctx, &model.Winner{
			ClientID: fx.second.ID, CampaignID: fx.campaign.ID, RewardID: rewardID,
			Code: taken, Status: model.WinnerStatusPending,
		})
		require.ErrorIs(t, err, loyalty.ErrWinnerCodeTaken)

		return tx.InsertWinner(ctx, &model.Winner{
			ClientID: fx.second.ID, CampaignID: fx.campaign.ID, RewardID: rewardID,
			Code: fresh, Status: model.WinnerStatusPending,
		})
	})
	require.NoError(t, err)

	entries, err := repo.ClientPointEntries(ctx, fx.second.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	err = repo.InSaleTx(ctx, fx.second.ID, func(tx loyalty.SaleTx) error {
		exists, err := tx.WinnerExists(ctx, fx.second.ID, fx.campaign.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		return tx.InsertWinner(ctx, &model.Winner{
			ClientID: fx.second.ID, CampaignID: fx.campaign.ID, RewardID: rewardID,
			Code: "X" + uniq(), Status: model.WinnerStatusPending,
		})
	})
	assert.ErrorIs(t, err, loyalty.ErrWinnerExists)

	winners, err := repo.ListWinners(ctx, model.WinnerFilter{CampaignID: fx.campaign.ID})
	require.NoError(t, err)
	assert.Len(t, winners, 2)
}

func TestPostgresRepository_SavepointRollsBackInnerWrites(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()
	fx := seedPostgres(t, repo, ptrInt64(2))
	boom := errors.New("boom")

	err := repo.InSaleTx(ctx, fx.first.ID, func(tx loyalty.SaleTx) error {
		require.NoError(t, tx.AppendPoints(ctx, model.PointEntry{
			ClientID: fx.first.ID, CampaignID: fx.campaign.ID, Amount: 10,
			GrantedAt: time.Now(), ExpiresAt: fx.campaign.EndsAt,
		}))

		err := tx.Savepoint(ctx, func(tx loyalty.SaleTx) error {
			_, err := tx.TakeRewardStock(ctx, fx.campaign.Rewards[0].ID)
			require.NoError(t, err)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		total, err := tx.SumValidPoints(ctx, fx.first.ID, fx.campaign.ID, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(10), total)
		return nil
	})
	require.NoError(t, err)

	stored, err := repo.GetCampaign(ctx, fx.campaign.ID)
	require.NoError(t, err)
	require.Len(t, stored.Rewards, 1)
	assert.Equal(t, int64(2), *stored.Rewards[0].StockRemaining)
}

func TestPostgresRepository_RedeemWinnerOnce(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()
	fx := seedPostgres(t, repo, nil)
	code := "R" + uniq()

	require.NoError(t, repo.InSaleTx(ctx, fx.first.ID, func(tx loyalty.SaleTx) error {
		return tx.InsertWinner(ctx, &model.Winner{
			ClientID: fx.first.ID, CampaignID: fx.campaign.ID, RewardID: fx.campaign.Rewards[0].ID,
			Code: code, Status: model.WinnerStatusPending,
		})
	}))

	var (
		redeemed atomic.Int32
		claimed  atomic.Int32
		g        errgroup.Group
	)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := repo.RedeemWinner(ctx, code, time.Now())
			switch {
			case err == nil:
				redeemed.Add(1)
			case errors.Is(err, loyalty.ErrWinnerCodeAlreadyClaimed):
				claimed.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), redeemed.Load())
	assert.Equal(t, int32(7), claimed.Load())

	winners, err := repo.ListWinners(ctx, model.WinnerFilter{CampaignID: fx.campaign.ID})
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, model.WinnerStatusRedeemed, winners[0].Status)
	assert.NotNil(t, winners[0].RedeemedAt)

	_, err = repo.RedeemWinner(ctx, "N"+uniq(), time.Now())
	assert.ErrorIs(t, err, loyalty.ErrWinnerCodeNotFound)
}
