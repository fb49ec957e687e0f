package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

type createClientRequest struct {
	DNI       string `json:"dni" validate:"dni"`
	FirstName string `json:"firstName" validate:"notblank,max=100"`
	LastName  string `json:"lastName" validate:"notblank,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Email     string `json:"email" validate:"omitempty,email"`
}

type updateClientRequest struct {
	DNI       *string `json:"dni" validate:"omitempty,dni"`
	FirstName *string `json:"firstName" validate:"omitempty,notblank,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,notblank,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Email     *string `json:"email" validate:"omitempty,email"`
}

type clientResponse struct {
	ID        int64  `json:"id"`
	DNI       string `json:"dni"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func toClientResponse(c *model.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		DNI:       c.DNI,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Email:     c.Email,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

type pageMeta struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Page   int   `json:"page"`
	Total  int64 `json:"total"`
}

type clientListResponse struct {
	Data []clientResponse `json:"data"`
	Meta pageMeta         `json:"meta"`
}

// CreateClient регистрирует нового клиента.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	c := &model.Client{
		DNI:       req.DNI,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
	}
	if err := h.service.CreateClient(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClientResponse(c))
}

// ListClients возвращает страницу клиентов. Параметры: limit, offset (или skip).
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	name := "offset"
	if r.URL.Query().Get(name) == "" {
		name = "skip"
	}
	offset, err := queryInt(r, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.service.ListClients(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := clientListResponse{
		Data: make([]clientResponse, 0, len(page.Clients)),
		Meta: pageMeta{
			Limit:  page.Limit,
			Offset: page.Offset,
			Page:   1,
			Total:  page.Total,
		},
	}
	if page.Limit > 0 {
		resp.Meta.Page = page.Offset/page.Limit + 1
	}
	for i := range page.Clients {
		resp.Data = append(resp.Data, toClientResponse(&page.Clients[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetClient возвращает клиента по идентификатору.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toClientResponse(c))
}

// GetClientByDNI возвращает клиента по DNI.
func (h *Handler) GetClientByDNI(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetClientByDNI(r.Context(), chi.URLParam(r, "dni"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toClientResponse(c))
}

type campaignPointsResponse struct {
	CampaignID int64  `json:"campaignId"`
	Points     int64  `json:"points"`
	ExpiresAt  string `json:"expiresAt"`
}

type pointsResponse struct {
	ClientID   int64                    `json:"clientId"`
	Total      int64                    `json:"total"`
	ByCampaign []campaignPointsResponse `json:"byCampaign"`
}

// GetClientPoints возвращает действующие баллы клиента.
func (h *Handler) GetClientPoints(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.service.GetClientPoints(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := pointsResponse{
		ClientID:   id,
		Total:      summary.Total,
		ByCampaign: make([]campaignPointsResponse, 0, len(summary.ByCampaign)),
	}
	for _, cp := range summary.ByCampaign {
		resp.ByCampaign = append(resp.ByCampaign, campaignPointsResponse{
			CampaignID: cp.CampaignID,
			Points:     cp.Points,
			ExpiresAt:  formatTime(cp.ExpiresAt),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateClient частично обновляет данные клиента.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateClientRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if req.DNI != nil {
		c.DNI = *req.DNI
	}
	if req.FirstName != nil {
		c.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		c.LastName = *req.LastName
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Email != nil {
		c.Email = *req.Email
	}

	if err := h.service.UpdateClient(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toClientResponse(c))
}
