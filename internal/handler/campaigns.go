package handler

import (
	"net/http"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/service"
)

type campaignProductRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Points    int64 `json:"points" validate:"gt=0"`
}

type rewardRequest struct {
	Description    string `json:"description" validate:"notblank,max=200"`
	PointsRequired int64  `json:"pointsRequired" validate:"gte=0"`
	Stock          *int64 `json:"stock" validate:"omitempty,gte=0"`
}

type createCampaignRequest struct {
	Name        string                   `json:"name" validate:"notblank,max=200"`
	Description string                   `json:"description" validate:"max=1000"`
	StartsAt    time.Time                `json:"startsAt" validate:"required"`
	EndsAt      time.Time                `json:"endsAt" validate:"required"`
	Products    []campaignProductRequest `json:"products" validate:"dive"`
	Rewards     []rewardRequest          `json:"rewards" validate:"dive"`
}

type updateCampaignRequest struct {
	Name        *string    `json:"name" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
}

type rewardResponse struct {
	ID             int64  `json:"id"`
	Description    string `json:"description"`
	PointsRequired int64  `json:"pointsRequired"`
	Stock          *int64 `json:"stock"`
}

type campaignResponse struct {
	ID          int64                    `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	StartsAt    string                   `json:"startsAt"`
	EndsAt      string                   `json:"endsAt"`
	Status      string                   `json:"status"`
	Products    []campaignProductRequest `json:"products"`
	Rewards     []rewardResponse         `json:"rewards"`
	CreatedAt   string                   `json:"createdAt"`
}

func toCampaignResponse(c *model.Campaign, status model.CampaignStatus) campaignResponse {
	resp := campaignResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		StartsAt:    formatTime(c.StartsAt),
		EndsAt:      formatTime(c.EndsAt),
		Status:      string(status),
		Products:    make([]campaignProductRequest, 0, len(c.Products)),
		Rewards:     make([]rewardResponse, 0, len(c.Rewards)),
		CreatedAt:   formatTime(c.CreatedAt),
	}
	for _, p := range c.Products {
		resp.Products = append(resp.Products, campaignProductRequest{ProductID: p.ProductID, Points: p.Points})
	}
	for _, rw := range c.Rewards {
		resp.Rewards = append(resp.Rewards, rewardResponse{
			ID:             rw.ID,
			Description:    rw.Description,
			PointsRequired: rw.PointsRequired,
			Stock:          rw.StockRemaining,
		})
	}
	return resp
}

func fromView(v *service.CampaignView) campaignResponse {
	return toCampaignResponse(&v.Campaign, v.Status)
}

// CreateCampaign создаёт кампанию вместе с товарами и призами.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	c := &model.Campaign{
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}
	for _, p := range req.Products {
		c.Products = append(c.Products, model.CampaignProduct{ProductID: p.ProductID, Points: p.Points})
	}
	for _, rw := range req.Rewards {
		c.Rewards = append(c.Rewards, model.Reward{
			Description:    rw.Description,
			PointsRequired: rw.PointsRequired,
			StockRemaining: rw.Stock,
		})
	}

	v, err := h.service.CreateCampaign(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, fromView(v))
}

// ListCampaigns возвращает кампании, при необходимости отфильтрованные по состоянию.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	status := model.CampaignStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.writeError(w, r, loyalty.ValidationError{Field: "status", Message: "must be one of upcoming active expired"})
		return
	}

	views, err := h.service.ListCampaigns(r.Context(), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]campaignResponse, 0, len(views))
	for i := range views {
		resp = append(resp, fromView(&views[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetActiveCampaign возвращает текущую активную кампанию.
func (h *Handler) GetActiveCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetActiveCampaign(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCampaignResponse(c, model.CampaignStatusActive))
}

// GetCampaign возвращает кампанию по идентификатору.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	v, err := h.service.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromView(v))
}

// UpdateCampaign частично изменяет кампанию.
func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateCampaignRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	v, err := h.service.UpdateCampaign(r.Context(), id, model.CampaignPatch{
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fromView(v))
}

// DeleteCampaign удаляет кампанию без продаж.
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.DeleteCampaign(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddCampaignProduct добавляет товар в кампанию.
func (h *Handler) AddCampaignProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req campaignProductRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	v, err := h.service.AddCampaignProduct(r.Context(), id, model.CampaignProduct{
		ProductID: req.ProductID,
		Points:    req.Points,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, fromView(v))
}

// AddCampaignReward добавляет приз в кампанию.
func (h *Handler) AddCampaignReward(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req rewardRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	v, err := h.service.AddCampaignReward(r.Context(), id, model.Reward{
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		StockRemaining: req.Stock,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, fromView(v))
}

// RemoveCampaignReward удаляет приз из кампании.
func (h *Handler) RemoveCampaignReward(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rewardID, err := pathID(r, "rewardID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.RemoveCampaignReward(r.Context(), id, rewardID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
