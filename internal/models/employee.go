package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PerformanceTier — уровень сотрудника, зависящий от числа привлечённых покупок.
type PerformanceTier string

const (
	TierBronze   PerformanceTier = "bronze"
	TierSilver   PerformanceTier = "silver"
	TierGold     PerformanceTier = "gold"
	TierPlatinum PerformanceTier = "platinum"
)

// Значения по умолчанию для нового сотрудника.
var (
	DefaultCommissionRate     = decimal.RequireFromString("0.05")
	DefaultDiscountPercentage = 20
)

// TierFor возвращает уровень для накопленного количества баллов.
func TierFor(points int) PerformanceTier {
	switch {
	case points >= 50:
		return TierPlatinum
	case points >= 25:
		return TierGold
	case points >= 10:
		return TierSilver
	default:
		return TierBronze
	}
}

// Employee хранит реферальные данные и накопленную статистику сотрудника.
type Employee struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"userId"`
	EmployeeCode       string          `json:"employeeCode"`
	ReferralCode       string          `json:"referralCode"`
	CommissionRate     decimal.Decimal `json:"commissionRate"`
	DiscountPercentage int             `json:"discountPercentage"`
	TotalCommission    decimal.Decimal `json:"totalCommission"`
	TotalPoints        int             `json:"totalPoints"`
	PerformanceTier    PerformanceTier `json:"performanceTier"`
	IsActive           bool            `json:"isActive"`
	CreatedAt          time.Time       `json:"createdAt"`
}
