package loyalty

import (
	"context"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// PointStore описывает хранилище начислений баллов.
type PointStore interface {
	AppendPoints(ctx context.Context, entry model.PointEntry) error
	SumValidPoints(ctx context.Context, clientID, campaignID int64, asOf time.Time) (int64, error)
}

// SaleTx описывает операции, выполняемые в одной транзакции регистрации продажи.
// Реализации сериализуют транзакции одного клиента.
type SaleTx interface {
	PointStore
	Campaign(ctx context.Context, id int64) (*model.Campaign, error)
	InsertSale(ctx context.Context, sale *model.Sale) error
	WinnerExists(ctx context.Context, clientID, campaignID int64) (bool, error)
	WinnerCodeExists(ctx context.Context, code string) (bool, error)
	// TakeRewardStock резервирует экземпляр приза. Для призов без ограничения всегда true.
	TakeRewardStock(ctx context.Context, rewardID int64) (bool, error)
	// InsertWinner возвращает ErrWinnerCodeTaken или ErrWinnerExists при нарушении уникальности,
	// не прерывая внешнюю транзакцию.
	InsertWinner(ctx context.Context, w *model.Winner) error
	// Savepoint выполняет fn так, что при ошибке откатываются только её изменения.
	Savepoint(ctx context.Context, fn func(tx SaleTx) error) error
}

// RedemptionStore описывает хранилище, необходимое для погашения кодов.
type RedemptionStore interface {
	// RedeemWinner атомарно переводит выигрыш из pending в redeemed.
	RedeemWinner(ctx context.Context, code string, at time.Time) (*model.Winner, error)
	GetClient(ctx context.Context, id int64) (*model.Client, error)
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
}
