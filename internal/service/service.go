// Package service реализует бизнес-логику программы лояльности.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/metrics"
	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/notify"
	"github.com/mmeshcher/loyalty-system/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateStaffUser(ctx context.Context, u *model.StaffUser) (bool, error)
	GetStaffUserByName(ctx context.Context, name string) (*model.StaffUser, error)

	CreateClient(ctx context.Context, c *model.Client) error
	UpdateClient(ctx context.Context, c *model.Client) error
	GetClient(ctx context.Context, id int64) (*model.Client, error)
	GetClientByDNI(ctx context.Context, dni string) (*model.Client, error)
	ListClients(ctx context.Context, limit, offset int) ([]model.Client, int64, error)
	ClientPointEntries(ctx context.Context, clientID int64) ([]model.PointEntry, error)

	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProductByCode(ctx context.Context, code string) (*model.Product, error)
	ListActiveProducts(ctx context.Context) ([]model.Product, error)

	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	UpdateCampaign(ctx context.Context, c *model.Campaign) error
	DeleteCampaign(ctx context.Context, id int64) error
	AddCampaignProduct(ctx context.Context, campaignID int64, p model.CampaignProduct) error
	AddCampaignReward(ctx context.Context, campaignID int64, rw *model.Reward) error
	RemoveCampaignReward(ctx context.Context, campaignID, rewardID int64) error

	InSaleTx(ctx context.Context, clientID int64, fn func(tx loyalty.SaleTx) error) error
	GetSaleReceipt(ctx context.Context, qrToken string) (*model.SaleReceipt, error)

	RedeemWinner(ctx context.Context, code string, at time.Time) (*model.Winner, error)
	ListWinners(ctx context.Context, f model.WinnerFilter) ([]model.Winner, error)
	ListUnnotifiedWinners(ctx context.Context, limit int) ([]model.Winner, error)
	MarkWinnerNotified(ctx context.Context, id int64) error
}

// Notifier доставляет уведомления о выигрыше.
type Notifier interface {
	SendWinner(ctx context.Context, n notify.WinnerNotification) (int, time.Duration, error)
}

// Options задаёт параметры сервиса. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	Threshold       int64
	CodeLength      int
	CodeMaxAttempts int
	QRBaseURL       string
	Clock           loyalty.Clock
	Notifier        Notifier
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

// Service содержит бизнес-логику программы лояльности.
type Service struct {
	repo      Repository
	ledger    *loyalty.Ledger
	engine    *loyalty.Engine
	redeemer  *loyalty.Redeemer
	clock     loyalty.Clock
	qrBaseURL string
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и параметрами.
func NewService(repo Repository, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = loyalty.SystemClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ledger := loyalty.NewLedger(clock)
	codes := loyalty.NewCodeGenerator(loyalty.CodeGeneratorConfig{
		Length:      opts.CodeLength,
		MaxAttempts: opts.CodeMaxAttempts,
	})

	return &Service{
		repo:      repo,
		ledger:    ledger,
		engine:    loyalty.NewEngine(ledger, codes, opts.Threshold, clock),
		redeemer:  loyalty.NewRedeemer(repo, clock),
		clock:     clock,
		qrBaseURL: strings.TrimRight(opts.QRBaseURL, "/"),
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterSale регистрирует продажу товара клиенту в активной кампании, начисляет баллы
// и при достижении порога назначает приз. Начисление и назначение выполняются атомарно.
func (s *Service) RegisterSale(ctx context.Context, dni, productCode string, role model.Role) (*model.SaleResult, error) {
	if !role.CanRegisterSales() {
		return nil, loyalty.ErrForbidden
	}

	dni = strings.TrimSpace(dni)
	productCode = strings.TrimSpace(productCode)
	if dni == "" {
		return nil, loyalty.ValidationError{Field: "dni", Message: "is required"}
	}
	if productCode == "" {
		return nil, loyalty.ValidationError{Field: "productCode", Message: "is required"}
	}

	client, err := s.repo.GetClientByDNI(ctx, dni)
	if err != nil {
		return nil, err
	}

	campaign, err := s.GetActiveCampaign(ctx)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.GetProductByCode(ctx, productCode)
	if err != nil {
		return nil, err
	}

	points, ok := campaign.ProductPoints(product.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not part of campaign %q", loyalty.ErrProductNotFound, product.Code, campaign.Name)
	}

	sale := model.Sale{
		ClientID:   client.ID,
		CampaignID: campaign.ID,
		ProductID:  product.ID,
		Points:     points,
		QRToken:    uuid.NewString(),
	}

	var assignment loyalty.AssignmentResult
	err = s.repo.InSaleTx(ctx, client.ID, func(tx loyalty.SaleTx) error {
		if err := tx.InsertSale(ctx, &sale); err != nil {
			return err
		}
		if _, err := s.ledger.Grant(ctx, tx, client.ID, campaign.ID, points, campaign.EndsAt); err != nil {
			return err
		}

		var err error
		assignment, err = s.engine.Evaluate(ctx, tx, client.ID, campaign.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("register sale: %w", err)
	}

	res := &model.SaleResult{
		Sale:  sale,
		QRURL: s.qrURL(sale.QRToken),
	}
	if assignment.Assigned {
		res.Winner = assignment.Winner
		res.RewardDescription = assignment.Reward.Description
		s.logger.Info("winner assigned",
			zap.Int64("client_id", client.ID),
			zap.Int64("campaign_id", campaign.ID),
			zap.Int64("reward_id", assignment.Reward.ID),
		)
	}
	s.metrics.SaleRegistered(points, assignment.Assigned)

	return res, nil
}

func (s *Service) qrURL(token string) string {
	return s.qrBaseURL + "/qr?token=" + token
}

// GetSaleReceipt возвращает публичные данные продажи по QR-токену.
func (s *Service) GetSaleReceipt(ctx context.Context, qrToken string) (*model.SaleReceipt, error) {
	qrToken = strings.TrimSpace(qrToken)
	if qrToken == "" {
		return nil, loyalty.ErrQRTokenNotFound
	}
	return s.repo.GetSaleReceipt(ctx, qrToken)
}

// ListWinners возвращает победителей по фильтру, новые первыми.
func (s *Service) ListWinners(ctx context.Context, f model.WinnerFilter) ([]model.Winner, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, loyalty.ValidationError{Field: "status", Message: "must be one of pending redeemed"}
	}
	return s.repo.ListWinners(ctx, f)
}

// ClaimReward погашает код победителя. Повторное погашение возвращает ErrWinnerCodeAlreadyClaimed.
func (s *Service) ClaimReward(ctx context.Context, code string) (*model.ClaimResult, error) {
	code = validation.NormalizeWinnerCode(code)
	if code == "" {
		return nil, loyalty.ValidationError{Field: "code", Message: "is required"}
	}

	res, err := s.redeemer.Claim(ctx, code)
	if err != nil {
		s.metrics.RewardClaimed(loyalty.Code(err))
		return nil, err
	}
	s.metrics.RewardClaimed("ok")

	if !res.RewardFound {
		s.logger.Warn("claimed reward no longer exists in campaign", zap.String("code", res.Code))
	}

	return res, nil
}
