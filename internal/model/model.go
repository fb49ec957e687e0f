// Package model содержит доменные сущности программы лояльности.
package model

import "time"

// Role описывает роль сотрудника магазина.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCashier   Role = "cashier"
	RoleMarketing Role = "marketing"
)

// Valid сообщает, является ли роль известной системе.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCashier, RoleMarketing:
		return true
	}
	return false
}

// CanRegisterSales сообщает, может ли роль регистрировать продажи и выдавать призы.
func (r Role) CanRegisterSales() bool {
	return r == RoleAdmin || r == RoleCashier
}

// StaffUser представляет сотрудника, работающего с системой.
type StaffUser struct {
	ID        int64
	Name      string
	PinHash   []byte
	Role      Role
	Active    bool
	CreatedAt time.Time
}

// Client представляет покупателя, участвующего в программе лояльности.
type Client struct {
	ID        int64
	DNI       string
	FirstName string
	LastName  string
	Phone     string
	Email     string
	CreatedAt time.Time
}

// PointEntry описывает одно неизменяемое начисление баллов в рамках кампании.
type PointEntry struct {
	ClientID   int64
	CampaignID int64
	Amount     int64
	GrantedAt  time.Time
	ExpiresAt  time.Time
}

// Product описывает товар каталога.
type Product struct {
	ID          int64
	Code        string
	Name        string
	Description string
	Active      bool
	CreatedAt   time.Time
}

// CampaignProduct задаёт количество баллов за единицу товара в кампании.
type CampaignProduct struct {
	ProductID int64
	Points    int64
}

// Reward описывает приз кампании. Идентификатор стабилен на всё время жизни кампании.
type Reward struct {
	ID             int64
	Description    string
	PointsRequired int64
	StockRemaining *int64
}

// InStock сообщает, остались ли экземпляры приза. Пустой остаток означает неограниченный приз.
func (r Reward) InStock() bool {
	return r.StockRemaining == nil || *r.StockRemaining > 0
}

// Campaign описывает ограниченную по времени кампанию начисления баллов.
type Campaign struct {
	ID          int64
	Name        string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	Products    []CampaignProduct
	Rewards     []Reward
	CreatedAt   time.Time
}

// ProductPoints возвращает количество баллов за товар и признак его участия в кампании.
func (c *Campaign) ProductPoints(productID int64) (int64, bool) {
	for _, p := range c.Products {
		if p.ProductID == productID {
			return p.Points, true
		}
	}
	return 0, false
}

// RewardByID ищет приз по стабильному идентификатору, а не по позиции в списке.
func (c *Campaign) RewardByID(id int64) (Reward, bool) {
	for _, r := range c.Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}

// CampaignPatch содержит изменяемые поля кампании.
type CampaignPatch struct {
	Name        *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// Sale описывает неизменяемую запись о покупке, она же квитанция по QR-токену.
type Sale struct {
	ID         int64
	ClientID   int64
	CampaignID int64
	ProductID  int64
	Points     int64
	QRToken    string
	CreatedAt  time.Time
}

// Winner описывает выигрыш клиента в кампании.
type Winner struct {
	ID               int64
	ClientID         int64
	CampaignID       int64
	RewardID         int64
	Code             string
	Status           WinnerStatus
	RedeemedAt       *time.Time
	NotificationSent bool
	CreatedAt        time.Time
}

// WinnerFilter задаёт необязательные условия выборки победителей.
type WinnerFilter struct {
	Status     WinnerStatus
	DNI        string
	CampaignID int64
}

// SaleResult возвращается после регистрации продажи.
type SaleResult struct {
	Sale              Sale
	QRURL             string
	Winner            *Winner
	RewardDescription string
}

// SaleReceipt содержит публичное представление продажи по QR-токену.
type SaleReceipt struct {
	ClientFirstName string
	ClientLastName  string
	ProductName     string
	Points          int64
	CampaignName    string
	CreatedAt       time.Time
}

// ClientSummary содержит данные клиента, показываемые при выдаче приза.
type ClientSummary struct {
	FirstName string
	LastName  string
	DNI       string
}

// ClaimResult возвращается после успешного погашения кода победителя.
type ClaimResult struct {
	Client            ClientSummary
	RewardDescription string
	RewardFound       bool
	Code              string
	RedeemedAt        time.Time
}

// CampaignPoints содержит сумму действующих баллов клиента в одной кампании.
type CampaignPoints struct {
	CampaignID int64
	Points     int64
	ExpiresAt  time.Time
}

// PointsSummary содержит действующие баллы клиента.
type PointsSummary struct {
	Total      int64
	ByCampaign []CampaignPoints
}
