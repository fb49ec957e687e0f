package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/validation"
)

const (
	defaultClientsLimit = 20
	maxClientsLimit     = 100
)

// ClientPage описывает страницу списка клиентов.
type ClientPage struct {
	Clients []model.Client
	Limit   int
	Offset  int
	Total   int64
}

// CreateClient регистрирует клиента. Повторный DNI возвращает ErrClientExists.
func (s *Service) CreateClient(ctx context.Context, c *model.Client) error {
	if err := checkClient(c); err != nil {
		return err
	}
	return s.repo.CreateClient(ctx, c)
}

// UpdateClient обновляет данные клиента.
func (s *Service) UpdateClient(ctx context.Context, c *model.Client) error {
	if err := checkClient(c); err != nil {
		return err
	}
	return s.repo.UpdateClient(ctx, c)
}

func checkClient(c *model.Client) error {
	c.DNI = strings.TrimSpace(c.DNI)
	if !validation.IsValidDNI(c.DNI) {
		return loyalty.ValidationError{Field: "dni", Message: "must be 7 to 10 digits"}
	}
	if strings.TrimSpace(c.FirstName) == "" {
		return loyalty.ValidationError{Field: "firstName", Message: "is required"}
	}
	if strings.TrimSpace(c.LastName) == "" {
		return loyalty.ValidationError{Field: "lastName", Message: "is required"}
	}
	return nil
}

// ListClients возвращает страницу клиентов, новые первыми.
func (s *Service) ListClients(ctx context.Context, limit, offset int) (*ClientPage, error) {
	if limit <= 0 {
		limit = defaultClientsLimit
	}
	if limit > maxClientsLimit {
		limit = maxClientsLimit
	}
	if offset < 0 {
		offset = 0
	}

	clients, total, err := s.repo.ListClients(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ClientPage{
		Clients: clients,
		Limit:   limit,
		Offset:  offset,
		Total:   total,
	}, nil
}

// GetClient возвращает клиента по идентификатору.
func (s *Service) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	return s.repo.GetClient(ctx, id)
}

// GetClientByDNI возвращает клиента по DNI.
func (s *Service) GetClientByDNI(ctx context.Context, dni string) (*model.Client, error) {
	return s.repo.GetClientByDNI(ctx, strings.TrimSpace(dni))
}

// GetClientPoints возвращает действующие баллы клиента с разбивкой по кампаниям.
func (s *Service) GetClientPoints(ctx context.Context, clientID int64) (*model.PointsSummary, error) {
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	entries, err := s.repo.ClientPointEntries(ctx, clientID)
	if err != nil {
		return nil, err
	}

	summary := loyalty.Summarize(entries, s.clock())
	return &summary, nil
}
