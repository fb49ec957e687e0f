package handler

import (
	"net/http"

	"go.uber.org/zap"
)

type loginRequest struct {
	Name string `json:"name" validate:"notblank"`
	PIN  string `json:"pin" validate:"required,min=4,max=12"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt string        `json:"expiresAt"`
	User      staffResponse `json:"user"`
}

type staffResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Login проверяет имя и PIN сотрудника, выдаёт токен и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.service.Login(r.Context(), req.Name, req.PIN)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, expires, err := h.authMiddleware.IssueToken(user.ID, user.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.authMiddleware.SetAuthCookie(w, token, expires)

	h.logger.Info("staff logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: formatTime(expires),
		User: staffResponse{
			ID:   user.ID,
			Name: user.Name,
			Role: string(user.Role),
		},
	})
}
