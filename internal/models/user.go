// Package models содержит доменные структуры сервиса юридических писем:
// пользователей, сотрудников, тарифные планы, подписки, письма и комиссии.
// Структуры используются в бизнес‑логике, хранилище и HTTP-слое.
package models

import "time"

// Role определяет роль учётной записи.
type Role string

const (
	// RoleUser — обычный клиент, заказывающий письма.
	RoleUser Role = "user"
	// RoleEmployee — сотрудник с реферальным кодом.
	RoleEmployee Role = "employee"
	// RoleAdmin — юрист, проверяющий письма.
	RoleAdmin Role = "admin"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID           string    `json:"id"`         // Уникальный идентификатор пользователя
	Email        string    `json:"email"`      // Электронная почта (уникальная)
	PasswordHash string    `json:"-"`          // Хэш пароля пользователя
	FirstName    string    `json:"firstName"`  // Имя
	LastName     string    `json:"lastName"`   // Фамилия
	Role         Role      `json:"role"`       // Роль: user, employee или admin
	CreatedAt    time.Time `json:"createdAt"`  // Дата регистрации
}

// SignupRequest используется для приёма данных регистрации из JSON-запроса.
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Role      Role   `json:"role" validate:"omitempty,oneof=user employee"`
}

// Principal описывает аутентифицированного участника запроса.
type Principal struct {
	UserID string
	Role   Role
}
