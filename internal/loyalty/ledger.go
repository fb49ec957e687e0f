package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// Ledger ведёт журнал начислений баллов, записи только добавляются.
type Ledger struct {
	clock Clock
}

// NewLedger создаёт журнал с указанными часами.
func NewLedger(clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	return &Ledger{clock: clock}
}

// Grant добавляет начисление. Срок действия фиксируется в момент начисления
// и не зависит от последующих изменений кампании.
func (l *Ledger) Grant(ctx context.Context, store PointStore, clientID, campaignID, amount int64, expiresAt time.Time) (model.PointEntry, error) {
	entry := model.PointEntry{
		ClientID:   clientID,
		CampaignID: campaignID,
		Amount:     amount,
		GrantedAt:  l.clock(),
		ExpiresAt:  expiresAt,
	}
	if err := store.AppendPoints(ctx, entry); err != nil {
		return model.PointEntry{}, fmt.Errorf("grant points: %w", err)
	}
	return entry, nil
}

// TotalValid возвращает сумму баллов клиента в кампании, не истёкших на момент asOf.
func (l *Ledger) TotalValid(ctx context.Context, store PointStore, clientID, campaignID int64, asOf time.Time) (int64, error) {
	total, err := store.SumValidPoints(ctx, clientID, campaignID, asOf)
	if err != nil {
		return 0, fmt.Errorf("sum valid points: %w", err)
	}
	return total, nil
}

// SumValid суммирует начисления кампании с ExpiresAt строго позже asOf.
func SumValid(entries []model.PointEntry, campaignID int64, asOf time.Time) int64 {
	var total int64
	for _, e := range entries {
		if e.CampaignID == campaignID && e.ExpiresAt.After(asOf) {
			total += e.Amount
		}
	}
	return total
}

// Summarize группирует действующие начисления по кампаниям в порядке первого появления.
func Summarize(entries []model.PointEntry, asOf time.Time) model.PointsSummary {
	var summary model.PointsSummary
	index := make(map[int64]int)

	for _, e := range entries {
		if !e.ExpiresAt.After(asOf) {
			continue
		}
		summary.Total += e.Amount

		i, ok := index[e.CampaignID]
		if !ok {
			index[e.CampaignID] = len(summary.ByCampaign)
			summary.ByCampaign = append(summary.ByCampaign, model.CampaignPoints{
				CampaignID: e.CampaignID,
				Points:     e.Amount,
				ExpiresAt:  e.ExpiresAt,
			})
			continue
		}
		cp := &summary.ByCampaign[i]
		cp.Points += e.Amount
		if e.ExpiresAt.After(cp.ExpiresAt) {
			cp.ExpiresAt = e.ExpiresAt
		}
	}

	return summary
}
