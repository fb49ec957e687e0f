package loyalty

import (
	"fmt"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// Clock возвращает текущее время. Внедряется для детерминированных тестов.
type Clock func() time.Time

// SystemClock возвращает системное время.
var SystemClock Clock = time.Now

// ResolveStatus вычисляет состояние кампании по её окну и текущему времени.
// Окно замкнуто: моменты now == start и now == end считаются активными.
func ResolveStatus(startsAt, endsAt, now time.Time) model.CampaignStatus {
	switch {
	case now.Before(startsAt):
		return model.CampaignStatusUpcoming
	case now.After(endsAt):
		return model.CampaignStatusExpired
	default:
		return model.CampaignStatusActive
	}
}

// CampaignStatus вычисляет состояние кампании на момент now.
func CampaignStatus(c *model.Campaign, now time.Time) model.CampaignStatus {
	return ResolveStatus(c.StartsAt, c.EndsAt, now)
}

// FindActive возвращает первую активную кампанию в порядке создания.
// Кампании должны быть упорядочены по возрастанию идентификатора.
func FindActive(campaigns []model.Campaign, now time.Time) (*model.Campaign, error) {
	for i := range campaigns {
		if CampaignStatus(&campaigns[i], now) == model.CampaignStatusActive {
			return &campaigns[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no active campaign", ErrCampaignNotActive)
}

// CountActive возвращает число одновременно активных кампаний.
func CountActive(campaigns []model.Campaign, now time.Time) int {
	n := 0
	for i := range campaigns {
		if CampaignStatus(&campaigns[i], now) == model.CampaignStatusActive {
			n++
		}
	}
	return n
}

// FilterByStatus оставляет кампании с указанным вычисленным состоянием.
func FilterByStatus(campaigns []model.Campaign, status model.CampaignStatus, now time.Time) []model.Campaign {
	res := make([]model.Campaign, 0, len(campaigns))
	for i := range campaigns {
		if CampaignStatus(&campaigns[i], now) == status {
			res = append(res, campaigns[i])
		}
	}
	return res
}
