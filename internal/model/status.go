package model

// CampaignStatus описывает вычисляемое состояние кампании. Никогда не сохраняется в хранилище.
type CampaignStatus string

const (
	CampaignStatusUpcoming CampaignStatus = "upcoming"
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusExpired  CampaignStatus = "expired"
)

// Valid сообщает, является ли значение известным состоянием кампании.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusUpcoming, CampaignStatusActive, CampaignStatusExpired:
		return true
	}
	return false
}

// WinnerStatus описывает состояние выигрыша.
type WinnerStatus string

const (
	WinnerStatusPending  WinnerStatus = "pending"
	WinnerStatusRedeemed WinnerStatus = "redeemed"
)

// Valid сообщает, является ли значение известным состоянием выигрыша.
func (s WinnerStatus) Valid() bool {
	return s == WinnerStatusPending || s == WinnerStatusRedeemed
}

// CanTransition сообщает, допустим ли переход в указанное состояние.
// Допустим только переход из pending в redeemed, обратного нет.
func (s WinnerStatus) CanTransition(to WinnerStatus) bool {
	return s == WinnerStatusPending && to == WinnerStatusRedeemed
}
