package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionStatus — статус выплаты комиссии.
type CommissionStatus string

const (
	CommissionPending CommissionStatus = "pending"
	CommissionPaid    CommissionStatus = "paid"
)

// CommissionRecord фиксирует вознаграждение сотрудника за одну покупку.
// Ставка сохраняется как снимок на момент покупки.
type CommissionRecord struct {
	ID                 string           `json:"id"`
	EmployeeID         string           `json:"employeeId"`
	UserSubscriptionID string           `json:"userSubscriptionId"`
	UserID             string           `json:"userId"`
	PlanID             string           `json:"planId"`
	FinalPrice         decimal.Decimal  `json:"finalPrice"`
	CommissionRate     decimal.Decimal  `json:"commissionRate"`
	CommissionAmount   decimal.Decimal  `json:"commissionAmount"`
	Status             CommissionStatus `json:"status"`
	CreatedAt          time.Time        `json:"createdAt"`
	PaidAt             *time.Time       `json:"paidAt,omitempty"`
}

// PaymentEvent — подтверждённое платёжным провайдером событие успешной оплаты.
type PaymentEvent struct {
	EventID        string
	PaymentRef     string
	UserID         string
	PlanID         string
	DiscountCode   string
	OriginalPrice  decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
}

// Purchase объединяет всё, что должно быть записано одной транзакцией
// при обработке события оплаты.
type Purchase struct {
	EventID      string
	Subscription UserSubscription
	Commission   *CommissionRecord
}

// Quote — расчёт стоимости плана с учётом реферальной скидки.
type Quote struct {
	PlanID         string          `json:"planId"`
	DiscountCode   string          `json:"discountCode,omitempty"`
	OriginalPrice  decimal.Decimal `json:"originalPrice"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalPrice     decimal.Decimal `json:"finalPrice"`
}

// AmountCents переводит итоговую цену в минимальные единицы валюты.
func (q Quote) AmountCents() int64 {
	return q.FinalPrice.Shift(2).Round(0).IntPart()
}
