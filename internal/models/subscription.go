package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingCycle — периодичность оплаты плана.
type BillingCycle string

const (
	BillingOneTime BillingCycle = "one-time"
	BillingYearly  BillingCycle = "yearly"
)

// SubscriptionPlan описывает тариф. Планы не изменяются на месте,
// новая цена или квота оформляется новым планом.
type SubscriptionPlan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	LetterCount  int             `json:"letterCount"`
	Price        decimal.Decimal `json:"price"`
	BillingCycle BillingCycle    `json:"billingCycle"`
	Features     []string        `json:"features"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// SubscriptionStatus — состояние подписки пользователя.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// UserSubscription — купленный пользователем пакет писем.
//
// LettersRemaining + LettersUsed всегда равно квоте плана на момент покупки,
// если администратор не вносил ручную корректировку.
type UserSubscription struct {
	ID               string             `json:"id"`
	UserID           string             `json:"userId"`
	PlanID           string             `json:"planId"`
	Status           SubscriptionStatus `json:"status"`
	LettersRemaining int                `json:"lettersRemaining"`
	LettersUsed      int                `json:"lettersUsed"`
	DiscountCode     string             `json:"discountCode,omitempty"`
	OriginalPrice    decimal.Decimal    `json:"originalPrice"`
	DiscountAmount   decimal.Decimal    `json:"discountAmount"`
	FinalPrice       decimal.Decimal    `json:"finalPrice"`
	PaymentRef       string             `json:"paymentRef,omitempty"`
	StartedAt        time.Time          `json:"startedAt"`
	ExpiresAt        *time.Time         `json:"expiresAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// HasCredit сообщает, может ли подписка оплатить ещё одно письмо.
func (s *UserSubscription) HasCredit() bool {
	return s != nil && s.Status == SubscriptionActive && s.LettersRemaining > 0
}

// CreditCorrection — ручная корректировка счётчиков администратором.
type CreditCorrection struct {
	RemainingDelta int    `json:"remainingDelta"`
	UsedDelta      int    `json:"usedDelta"`
	Reason         string `json:"reason" validate:"required,max=500"`
}
