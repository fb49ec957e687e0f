// Package handler содержит HTTP-обработчики API программы лояльности.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/middleware"
	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/service"
	"github.com/mmeshcher/loyalty-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Login(ctx context.Context, name, pin string) (*model.StaffUser, error)

	RegisterSale(ctx context.Context, dni, productCode string, role model.Role) (*model.SaleResult, error)
	GetSaleReceipt(ctx context.Context, qrToken string) (*model.SaleReceipt, error)
	ListWinners(ctx context.Context, f model.WinnerFilter) ([]model.Winner, error)
	ClaimReward(ctx context.Context, code string) (*model.ClaimResult, error)

	CreateClient(ctx context.Context, c *model.Client) error
	UpdateClient(ctx context.Context, c *model.Client) error
	ListClients(ctx context.Context, limit, offset int) (*service.ClientPage, error)
	GetClient(ctx context.Context, id int64) (*model.Client, error)
	GetClientByDNI(ctx context.Context, dni string) (*model.Client, error)
	GetClientPoints(ctx context.Context, clientID int64) (*model.PointsSummary, error)

	CreateProduct(ctx context.Context, p *model.Product) error
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProductByCode(ctx context.Context, code string) (*model.Product, error)

	CreateCampaign(ctx context.Context, c *model.Campaign) (*service.CampaignView, error)
	UpdateCampaign(ctx context.Context, id int64, patch model.CampaignPatch) (*service.CampaignView, error)
	ListCampaigns(ctx context.Context, status model.CampaignStatus) ([]service.CampaignView, error)
	GetActiveCampaign(ctx context.Context) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*service.CampaignView, error)
	DeleteCampaign(ctx context.Context, id int64) error
	AddCampaignProduct(ctx context.Context, campaignID int64, p model.CampaignProduct) (*service.CampaignView, error)
	AddCampaignReward(ctx context.Context, campaignID int64, rw model.Reward) (*service.CampaignView, error)
	RemoveCampaignReward(ctx context.Context, campaignID, rewardID int64) error
}

// Handler реализует HTTP-обработчики API программы лояльности.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metrics может быть nil, тогда маршрут /metrics не регистрируется.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, metrics http.Handler) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        metrics,
	}
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Message: message, Code: code}})
}

// statusFor сопоставляет доменную ошибку HTTP-статусу.
func statusFor(err error) int {
	var verr loyalty.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, loyalty.ErrInvalidCampaignDates):
		return http.StatusBadRequest
	case loyalty.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, loyalty.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, loyalty.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, loyalty.ErrCampaignNotActive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loyalty.ErrClientExists),
		errors.Is(err, loyalty.ErrProductExists),
		errors.Is(err, loyalty.ErrProductInCampaign),
		errors.Is(err, loyalty.ErrWinnerCodeAlreadyClaimed),
		errors.Is(err, loyalty.ErrWinnerExists),
		errors.Is(err, loyalty.ErrCampaignInUse),
		errors.Is(err, loyalty.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, loyalty.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает ошибкой в общем формате. Внутренние ошибки пишутся в журнал,
// а клиенту возвращается обезличенное сообщение.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		message = http.StatusText(status)
	}
	writeErrorCode(w, status, loyalty.Code(err), message)
}

// decode читает JSON-тело запроса и проверяет его по тегам validate.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return loyalty.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()}
	}
	return validation.Struct(dst)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, loyalty.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, loyalty.ValidationError{Field: name, Message: "must be a non-negative integer"}
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
