package handler

import (
	"net/http"
	"strconv"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/middleware"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

type saleRequest struct {
	DNI         string `json:"dni" validate:"dni"`
	ProductCode string `json:"productCode" validate:"notblank"`
}

type saleBody struct {
	ID         int64  `json:"id"`
	ClientID   int64  `json:"clientId"`
	CampaignID int64  `json:"campaignId"`
	ProductID  int64  `json:"productId"`
	Points     int64  `json:"points"`
	QRToken    string `json:"qrToken"`
	CreatedAt  string `json:"createdAt"`
}

const winnerMessage = "Congratulations! You have won a prize."

type saleWinner struct {
	Code    string `json:"code"`
	Reward  string `json:"reward"`
	Message string `json:"message"`
}

type saleResponse struct {
	Sale   saleBody    `json:"sale"`
	QRURL  string      `json:"qrUrl"`
	Winner *saleWinner `json:"winner"`
}

// RegisterSale регистрирует продажу от имени текущего сотрудника.
func (h *Handler) RegisterSale(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var req saleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.RegisterSale(r.Context(), req.DNI, req.ProductCode, role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := saleResponse{
		Sale: saleBody{
			ID:         res.Sale.ID,
			ClientID:   res.Sale.ClientID,
			CampaignID: res.Sale.CampaignID,
			ProductID:  res.Sale.ProductID,
			Points:     res.Sale.Points,
			QRToken:    res.Sale.QRToken,
			CreatedAt:  formatTime(res.Sale.CreatedAt),
		},
		QRURL: res.QRURL,
	}
	if res.Winner != nil {
		resp.Winner = &saleWinner{
			Code:    res.Winner.Code,
			Reward:  res.RewardDescription,
			Message: winnerMessage,
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

type receiptClient struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type receiptResponse struct {
	Client   receiptClient `json:"client"`
	Product  string        `json:"product"`
	Points   int64         `json:"points"`
	Campaign string        `json:"campaign"`
	Date     string        `json:"date"`
}

// GetSaleReceipt отдаёт публичную квитанцию по QR-токену.
func (h *Handler) GetSaleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.service.GetSaleReceipt(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, receiptResponse{
		Client: receiptClient{
			FirstName: receipt.ClientFirstName,
			LastName:  receipt.ClientLastName,
		},
		Product:  receipt.ProductName,
		Points:   receipt.Points,
		Campaign: receipt.CampaignName,
		Date:     formatTime(receipt.CreatedAt),
	})
}

type winnerResponse struct {
	ID               int64   `json:"id"`
	ClientID         int64   `json:"clientId"`
	CampaignID       int64   `json:"campaignId"`
	RewardID         int64   `json:"rewardId"`
	Code             string  `json:"code"`
	Status           string  `json:"status"`
	RedeemedAt       *string `json:"redeemedAt"`
	NotificationSent bool    `json:"notificationSent"`
	CreatedAt        string  `json:"createdAt"`
}

// ListWinners возвращает победителей с фильтрами status, dni и campaignId.
func (h *Handler) ListWinners(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.WinnerFilter{
		Status: model.WinnerStatus(q.Get("status")),
		DNI:    q.Get("dni"),
	}
	if raw := q.Get("campaignId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.writeError(w, r, loyalty.ValidationError{Field: "campaignId", Message: "must be a positive integer"})
			return
		}
		filter.CampaignID = id
	}

	winners, err := h.service.ListWinners(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]winnerResponse, 0, len(winners))
	for _, wn := range winners {
		resp = append(resp, winnerResponse{
			ID:               wn.ID,
			ClientID:         wn.ClientID,
			CampaignID:       wn.CampaignID,
			RewardID:         wn.RewardID,
			Code:             wn.Code,
			Status:           string(wn.Status),
			RedeemedAt:       formatTimePtr(wn.RedeemedAt),
			NotificationSent: wn.NotificationSent,
			CreatedAt:        formatTime(wn.CreatedAt),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type claimRequest struct {
	Code string `json:"code" validate:"notblank"`
}

type claimClient struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DNI       string `json:"dni"`
}

type claimResponse struct {
	Client     claimClient `json:"client"`
	Reward     string      `json:"reward"`
	Code       string      `json:"code"`
	RedeemedAt string      `json:"redeemedAt"`
}

// ClaimReward погашает выигрышный код.
func (h *Handler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.ClaimReward(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		Client: claimClient{
			FirstName: res.Client.FirstName,
			LastName:  res.Client.LastName,
			DNI:       res.Client.DNI,
		},
		Reward:     res.RewardDescription,
		Code:       res.Code,
		RedeemedAt: formatTime(res.RedeemedAt),
	})
}
