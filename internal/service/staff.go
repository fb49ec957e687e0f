package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

// StaffSeed описывает сотрудника, создаваемого при старте в режиме разработки.
type StaffSeed struct {
	Name string
	PIN  string
	Role model.Role
}

// DevelopmentStaff содержит сотрудников по умолчанию для режима разработки.
var DevelopmentStaff = []StaffSeed{
	{Name: "Admin", PIN: "1234", Role: model.RoleAdmin},
	{Name: "Cajero 1", PIN: "5678", Role: model.RoleCashier},
	{Name: "Marketing", PIN: "9012", Role: model.RoleMarketing},
}

// Login проверяет PIN сотрудника и возвращает его учётную запись.
func (s *Service) Login(ctx context.Context, name, pin string) (*model.StaffUser, error) {
	u, err := s.repo.GetStaffUserByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, loyalty.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(u.PinHash, []byte(pin)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, loyalty.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare pin: %w", err)
	}

	return u, nil
}

// CreateStaffUser создаёт сотрудника с хешированным PIN. Возвращает false, если имя занято.
func (s *Service) CreateStaffUser(ctx context.Context, name, pin string, role model.Role) (bool, error) {
	if !role.Valid() {
		return false, loyalty.ValidationError{Field: "role", Message: "must be one of admin cashier marketing"}
	}
	if len(pin) < 4 || len(pin) > 6 {
		return false, loyalty.ValidationError{Field: "pin", Message: "must be 4 to 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash pin: %w", err)
	}

	return s.repo.CreateStaffUser(ctx, &model.StaffUser{
		Name:    name,
		PinHash: hash,
		Role:    role,
		Active:  true,
	})
}

// SeedStaff создаёт недостающих сотрудников. Существующие учётные записи не изменяются.
func (s *Service) SeedStaff(ctx context.Context, seeds []StaffSeed) error {
	for _, seed := range seeds {
		created, err := s.CreateStaffUser(ctx, seed.Name, seed.PIN, seed.Role)
		if err != nil {
			return fmt.Errorf("seed staff %q: %w", seed.Name, err)
		}
		if created {
			s.logger.Info("staff user seeded", zap.String("name", seed.Name), zap.String("role", string(seed.Role)))
		}
	}
	return nil
}
