// Package loyalty реализует ядро программы лояльности: журнал баллов, статус кампаний,
// назначение победителей и погашение выигрышных кодов.
package loyalty

import (
	"errors"
	"fmt"
)

var (
	// ErrClientNotFound возвращается, если клиент не найден по DNI или идентификатору.
	ErrClientNotFound = errors.New("client not found")
	// ErrClientExists возвращается при попытке создать клиента с уже существующим DNI.
	ErrClientExists = errors.New("client already exists")
	// ErrCampaignNotFound возвращается, если кампания не найдена.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignNotActive возвращается, если нет активной кампании или указанная кампания не активна.
	ErrCampaignNotActive = errors.New("campaign not active")
	// ErrCampaignInUse возвращается при удалении кампании, по которой уже есть продажи.
	ErrCampaignInUse = errors.New("campaign has sales")
	// ErrInvalidCampaignDates возвращается, если дата начала кампании не предшествует дате окончания.
	ErrInvalidCampaignDates = errors.New("campaign start must precede end")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductExists        = errors.New("product already exists")
	// ErrProductInCampaign возвращается при повторном добавлении товара в кампанию.
	ErrProductInCampaign = errors.New("product already in campaign")
	ErrRewardNotFound    = errors.New("reward not found")
	// ErrCodeSpaceExhausted возвращается, когда генератор исчерпал лимит попыток подобрать свободный код.
	ErrCodeSpaceExhausted = errors.New("winner code space exhausted")
	// ErrWinnerExists сигнализирует, что у клиента уже есть выигрыш в кампании.
	ErrWinnerExists = errors.New("winner already exists for client and campaign")
	// ErrWinnerCodeTaken сигнализирует о нарушении уникальности кода победителя при вставке.
	ErrWinnerCodeTaken          = errors.New("winner code already taken")
	ErrWinnerCodeNotFound       = errors.New("winner code not found")
	ErrWinnerCodeAlreadyClaimed = errors.New("winner code already claimed")
	ErrQRTokenNotFound          = errors.New("qr token not found")
	// ErrConflict возвращается, когда исчерпаны повторы транзакции после конфликтов сериализации.
	ErrConflict           = errors.New("concurrent update conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError описывает некорректные входные данные.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

var codes = []struct {
	err  error
	code string
}{
	{ErrClientNotFound, "CLIENT_NOT_FOUND"},
	{ErrClientExists, "CLIENT_ALREADY_EXISTS"},
	{ErrCampaignNotFound, "CAMPAIGN_NOT_FOUND"},
	{ErrCampaignNotActive, "CAMPAIGN_NOT_ACTIVE"},
	{ErrCampaignInUse, "CAMPAIGN_IN_USE"},
	{ErrInvalidCampaignDates, "INVALID_CAMPAIGN_DATES"},
	{ErrProductNotFound, "PRODUCT_NOT_FOUND"},
	{ErrProductExists, "PRODUCT_ALREADY_EXISTS"},
	{ErrProductInCampaign, "PRODUCT_ALREADY_IN_CAMPAIGN"},
	{ErrRewardNotFound, "REWARD_NOT_FOUND"},
	{ErrCodeSpaceExhausted, "CODE_SPACE_EXHAUSTED"},
	{ErrWinnerExists, "WINNER_ALREADY_EXISTS"},
	{ErrWinnerCodeTaken, "WINNER_CODE_TAKEN"},
	{ErrWinnerCodeNotFound, "WINNER_CODE_NOT_FOUND"},
	{ErrWinnerCodeAlreadyClaimed, "WINNER_CODE_ALREADY_CLAIMED"},
	{ErrQRTokenNotFound, "QR_TOKEN_NOT_FOUND"},
	{ErrConflict, "CONCURRENT_UPDATE_CONFLICT"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrInvalidCredentials, "INVALID_CREDENTIALS"},
}

// Code возвращает машиночитаемый код ошибки. Для неизвестных ошибок возвращается INTERNAL_SERVER_ERROR.
func Code(err error) string {
	var verr ValidationError
	if errors.As(err, &verr) {
		return "VALIDATION_ERROR"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL_SERVER_ERROR"
}

// IsNotFound сообщает, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrRewardNotFound) ||
		errors.Is(err, ErrWinnerCodeNotFound) ||
		errors.Is(err, ErrQRTokenNotFound)
}
