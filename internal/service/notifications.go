package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/notify"
)

const notificationBatchSize = 100

// StartWinnerNotifications запускает фоновую отправку уведомлений новым победителям.
func (s *Service) StartWinnerNotifications(ctx context.Context) {
	if s.notifier == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processNotificationBatch(ctx)
			}
		}
	}()
}

func (s *Service) processNotificationBatch(ctx context.Context) {
	winners, err := s.repo.ListUnnotifiedWinners(ctx, notificationBatchSize)
	if err != nil {
		s.logger.Error("list unnotified winners", zap.Error(err))
		return
	}

	for _, w := range winners {
		n, err := s.buildNotification(ctx, w)
		if err != nil {
			s.logger.Error("build winner notification", zap.Int64("winner_id", w.ID), zap.Error(err))
			continue
		}

		statusCode, retryAfter, err := s.notifier.SendWinner(ctx, n)
		if err != nil {
			s.metrics.NotificationSent("error")
			s.logger.Warn("send winner notification", zap.Int64("winner_id", w.ID), zap.Error(err))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			s.metrics.NotificationSent("throttled")
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if err := s.repo.MarkWinnerNotified(ctx, w.ID); err != nil {
			s.logger.Error("mark winner notified", zap.Int64("winner_id", w.ID), zap.Error(err))
			continue
		}
		s.metrics.NotificationSent("ok")
	}
}

func (s *Service) buildNotification(ctx context.Context, w model.Winner) (notify.WinnerNotification, error) {
	client, err := s.repo.GetClient(ctx, w.ClientID)
	if err != nil {
		return notify.WinnerNotification{}, err
	}

	n := notify.WinnerNotification{
		WinnerID:  w.ID,
		Code:      w.Code,
		DNI:       client.DNI,
		FirstName: client.FirstName,
		LastName:  client.LastName,
		Email:     client.Email,
		Phone:     client.Phone,
		Reward:    loyalty.FallbackRewardDescription,
	}

	campaign, err := s.repo.GetCampaign(ctx, w.CampaignID)
	switch {
	case errors.Is(err, loyalty.ErrCampaignNotFound):
		return n, nil
	case err != nil:
		return notify.WinnerNotification{}, err
	}

	n.CampaignName = campaign.Name
	if rw, ok := campaign.RewardByID(w.RewardID); ok {
		n.Reward = rw.Description
	}
	return n, nil
}
