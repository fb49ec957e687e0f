package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

// CreateProduct добавляет товар в каталог. Повторный код возвращает ErrProductExists.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) error {
	p.Code = strings.TrimSpace(p.Code)
	if p.Code == "" {
		return loyalty.ValidationError{Field: "code", Message: "is required"}
	}
	if strings.TrimSpace(p.Name) == "" {
		return loyalty.ValidationError{Field: "name", Message: "is required"}
	}
	return s.repo.CreateProduct(ctx, p)
}

// ListProducts возвращает активные товары, упорядоченные по названию.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListActiveProducts(ctx)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetProductByCode возвращает товар по коду.
func (s *Service) GetProductByCode(ctx context.Context, code string) (*model.Product, error) {
	return s.repo.GetProductByCode(ctx, strings.TrimSpace(code))
}
