package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// FallbackRewardDescription используется, если приз был удалён из кампании после назначения.
const FallbackRewardDescription = "Reward"

// Redeemer переводит выигрыш из pending в redeemed ровно один раз.
type Redeemer struct {
	store RedemptionStore
	clock Clock
}

// NewRedeemer создаёт обработчик погашения кодов.
func NewRedeemer(store RedemptionStore, clock Clock) *Redeemer {
	if clock == nil {
		clock = SystemClock
	}
	return &Redeemer{store: store, clock: clock}
}

// Claim погашает код победителя. Из нескольких одновременных вызовов успешен только один,
// остальные получают ErrWinnerCodeAlreadyClaimed.
func (r *Redeemer) Claim(ctx context.Context, code string) (*model.ClaimResult, error) {
	w, err := r.store.RedeemWinner(ctx, code, r.clock())
	if err != nil {
		return nil, err
	}

	client, err := r.store.GetClient(ctx, w.ClientID)
	if err != nil {
		return nil, fmt.Errorf("load winner client: %w", err)
	}

	res := &model.ClaimResult{
		Client: model.ClientSummary{
			FirstName: client.FirstName,
			LastName:  client.LastName,
			DNI:       client.DNI,
		},
		RewardDescription: FallbackRewardDescription,
		Code:              w.Code,
	}
	if w.RedeemedAt != nil {
		res.RedeemedAt = *w.RedeemedAt
	}

	campaign, err := r.store.GetCampaign(ctx, w.CampaignID)
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("load winner campaign: %w", err)
	}

	if reward, ok := campaign.RewardByID(w.RewardID); ok {
		res.RewardDescription = reward.Description
		res.RewardFound = true
	}

	return res, nil
}

// Redeem применяет переход pending → redeemed к записи победителя.
// Используется хранилищами, выполняющими переход под собственной блокировкой.
func Redeem(w *model.Winner, at time.Time) error {
	if !w.Status.CanTransition(model.WinnerStatusRedeemed) {
		return ErrWinnerCodeAlreadyClaimed
	}
	w.Status = model.WinnerStatusRedeemed
	w.RedeemedAt = &at
	return nil
}
