package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// DefaultThreshold задаёт минимальную сумму действующих баллов для получения приза.
const DefaultThreshold = 100

// AssignmentResult описывает результат проверки порога после начисления.
type AssignmentResult struct {
	Assigned bool
	Winner   *model.Winner
	Reward   *model.Reward
}

// Engine назначает не более одного приза на пару (клиент, кампания).
type Engine struct {
	ledger    *Ledger
	codes     *CodeGenerator
	threshold int64
	clock     Clock
}

// NewEngine создаёт движок назначения победителей с явно переданным порогом.
func NewEngine(ledger *Ledger, codes *CodeGenerator, threshold int64, clock Clock) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Engine{
		ledger:    ledger,
		codes:     codes,
		threshold: threshold,
		clock:     clock,
	}
}

// Threshold возвращает порог назначения приза.
func (e *Engine) Threshold() int64 {
	return e.threshold
}

// Evaluate проверяет порог и при необходимости создаёт победителя.
// Вызывается внутри транзакции продажи сразу после начисления баллов.
func (e *Engine) Evaluate(ctx context.Context, tx SaleTx, clientID, campaignID int64) (AssignmentResult, error) {
	now := e.clock()

	campaign, err := tx.Campaign(ctx, campaignID)
	if err != nil {
		return AssignmentResult{}, err
	}
	if CampaignStatus(campaign, now) != model.CampaignStatusActive {
		return AssignmentResult{}, fmt.Errorf("%w: %s", ErrCampaignNotActive, campaign.Name)
	}

	total, err := e.ledger.TotalValid(ctx, tx, clientID, campaignID, now)
	if err != nil {
		return AssignmentResult{}, err
	}
	if total < e.threshold {
		return AssignmentResult{}, nil
	}

	exists, err := tx.WinnerExists(ctx, clientID, campaignID)
	if err != nil {
		return AssignmentResult{}, fmt.Errorf("check existing winner: %w", err)
	}
	if exists || len(campaign.Rewards) == 0 {
		return AssignmentResult{}, nil
	}

	var res AssignmentResult
	err = tx.Savepoint(ctx, func(tx SaleTx) error {
		reward, ok, err := e.takeReward(ctx, tx, campaign)
		if err != nil || !ok {
			return err
		}

		w, err := e.insertWinner(ctx, tx, clientID, campaignID, reward.ID)
		if err != nil {
			return err
		}

		res = AssignmentResult{Assigned: true, Winner: w, Reward: &reward}
		return nil
	})
	if errors.Is(err, ErrWinnerExists) {
		return AssignmentResult{}, nil
	}
	if err != nil {
		return AssignmentResult{}, err
	}

	return res, nil
}

// takeReward выбирает первый приз в порядке кампании, у которого остались экземпляры.
func (e *Engine) takeReward(ctx context.Context, tx SaleTx, campaign *model.Campaign) (model.Reward, bool, error) {
	for _, r := range campaign.Rewards {
		if !r.InStock() {
			continue
		}
		ok, err := tx.TakeRewardStock(ctx, r.ID)
		if err != nil {
			return model.Reward{}, false, fmt.Errorf("take reward stock: %w", err)
		}
		if ok {
			return r, true, nil
		}
	}
	return model.Reward{}, false, nil
}

// insertWinner подбирает свободный код и вставляет победителя. Совпадения при проверке
// и при вставке расходуют один общий лимит попыток генератора.
func (e *Engine) insertWinner(ctx context.Context, tx SaleTx, clientID, campaignID, rewardID int64) (*model.Winner, error) {
	for attempt := 0; attempt < e.codes.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code, err := e.codes.Random()
		if err != nil {
			return nil, err
		}

		taken, err := tx.WinnerCodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check winner code: %w", err)
		}
		if taken {
			continue
		}

		w := &model.Winner{
			ClientID:   clientID,
			CampaignID: campaignID,
			RewardID:   rewardID,
			Code:       code,
			Status:     model.WinnerStatusPending,
			CreatedAt:  e.clock(),
		}

		err = tx.InsertWinner(ctx, w)
		if errors.Is(err, ErrWinnerCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, fmt.Errorf("%w: %d attempts", ErrCodeSpaceExhausted, e.codes.MaxAttempts())
}
