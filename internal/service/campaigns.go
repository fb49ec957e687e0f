package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

// CampaignView содержит кампанию вместе с вычисленным состоянием.
type CampaignView struct {
	model.Campaign
	Status model.CampaignStatus
}

func (s *Service) view(c model.Campaign) CampaignView {
	return CampaignView{Campaign: c, Status: loyalty.CampaignStatus(&c, s.clock())}
}

// CreateCampaign создаёт кампанию. Начало должно предшествовать окончанию.
func (s *Service) CreateCampaign(ctx context.Context, c *model.Campaign) (*CampaignView, error) {
	if err := checkCampaign(c); err != nil {
		return nil, err
	}
	for _, p := range c.Products {
		if err := checkCampaignProduct(p); err != nil {
			return nil, err
		}
	}
	for _, rw := range c.Rewards {
		if err := checkReward(rw); err != nil {
			return nil, err
		}
	}

	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}

	v := s.view(*c)
	s.warnOverlap(ctx)
	return &v, nil
}

// UpdateCampaign применяет частичное изменение кампании.
func (s *Service) UpdateCampaign(ctx context.Context, id int64, patch model.CampaignPatch) (*CampaignView, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.StartsAt != nil {
		c.StartsAt = *patch.StartsAt
	}
	if patch.EndsAt != nil {
		c.EndsAt = *patch.EndsAt
	}

	if err := checkCampaign(c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}

	v := s.view(*c)
	s.warnOverlap(ctx)
	return &v, nil
}

func checkCampaign(c *model.Campaign) error {
	if strings.TrimSpace(c.Name) == "" {
		return loyalty.ValidationError{Field: "name", Message: "is required"}
	}
	if c.StartsAt.IsZero() || c.EndsAt.IsZero() || !c.StartsAt.Before(c.EndsAt) {
		return loyalty.ErrInvalidCampaignDates
	}
	return nil
}

func checkCampaignProduct(p model.CampaignProduct) error {
	if p.Points <= 0 {
		return loyalty.ValidationError{Field: "points", Message: "must be at least 1"}
	}
	return nil
}

func checkReward(rw model.Reward) error {
	if strings.TrimSpace(rw.Description) == "" {
		return loyalty.ValidationError{Field: "description", Message: "is required"}
	}
	if rw.StockRemaining != nil && *rw.StockRemaining < 0 {
		return loyalty.ValidationError{Field: "stock", Message: "must be at least 0"}
	}
	return nil
}

// warnOverlap предупреждает о нескольких одновременно активных кампаниях.
// Продажи в этом случае относятся к кампании, созданной раньше.
func (s *Service) warnOverlap(ctx context.Context) {
	campaigns, err := s.repo.ListCampaigns(ctx)
	if err != nil {
		return
	}
	if n := loyalty.CountActive(campaigns, s.clock()); n > 1 {
		s.logger.Warn("several campaigns are active at once", zap.Int("active", n))
	}
}

// ListCampaigns возвращает кампании в порядке создания. Пустой status означает все кампании.
func (s *Service) ListCampaigns(ctx context.Context, status model.CampaignStatus) ([]CampaignView, error) {
	if status != "" && !status.Valid() {
		return nil, loyalty.ValidationError{Field: "status", Message: "must be one of upcoming active expired"}
	}

	campaigns, err := s.repo.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" {
		campaigns = loyalty.FilterByStatus(campaigns, status, s.clock())
	}

	res := make([]CampaignView, 0, len(campaigns))
	for _, c := range campaigns {
		res = append(res, s.view(c))
	}
	return res, nil
}

// GetActiveCampaign возвращает первую по времени создания активную кампанию.
func (s *Service) GetActiveCampaign(ctx context.Context) (*model.Campaign, error) {
	campaigns, err := s.repo.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	return loyalty.FindActive(campaigns, s.clock())
}

// GetCampaign возвращает кампанию с вычисленным состоянием.
func (s *Service) GetCampaign(ctx context.Context, id int64) (*CampaignView, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(*c)
	return &v, nil
}

// DeleteCampaign удаляет кампанию без продаж.
func (s *Service) DeleteCampaign(ctx context.Context, id int64) error {
	return s.repo.DeleteCampaign(ctx, id)
}

// AddCampaignProduct добавляет товар в кампанию.
func (s *Service) AddCampaignProduct(ctx context.Context, campaignID int64, p model.CampaignProduct) (*CampaignView, error) {
	if err := checkCampaignProduct(p); err != nil {
		return nil, err
	}
	if err := s.repo.AddCampaignProduct(ctx, campaignID, p); err != nil {
		return nil, err
	}
	return s.GetCampaign(ctx, campaignID)
}

// AddCampaignReward добавляет приз в кампанию.
func (s *Service) AddCampaignReward(ctx context.Context, campaignID int64, rw model.Reward) (*CampaignView, error) {
	if err := checkReward(rw); err != nil {
		return nil, err
	}
	if err := s.repo.AddCampaignReward(ctx, campaignID, &rw); err != nil {
		return nil, err
	}
	return s.GetCampaign(ctx, campaignID)
}

// RemoveCampaignReward удаляет приз из кампании. Уже выданные коды остаются действительными.
func (s *Service) RemoveCampaignReward(ctx context.Context, campaignID, rewardID int64) error {
	return s.repo.RemoveCampaignReward(ctx, campaignID, rewardID)
}
