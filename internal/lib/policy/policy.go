// Package policy — единая таблица прав: какая роль может выполнять какое действие.
package policy

import "github.com/magabrotheeeer/legal-letters/internal/models"

// Action — защищённая операция.
type Action string

const (
	ActionCreateLetter      Action = "letters:create"
	ActionViewLetter        Action = "letters:view"
	ActionListAllLetters    Action = "letters:list-all"
	ActionReviewLetter      Action = "letters:review"
	ActionRetryGeneration   Action = "letters:retry"
	ActionDownloadLetter    Action = "letters:download"
	ActionAdminDownload     Action = "letters:admin-download"
	ActionRenderLetter      Action = "letters:render"
	ActionPurchase          Action = "subscriptions:purchase"
	ActionViewSubscription  Action = "subscriptions:view"
	ActionCorrectCredits    Action = "subscriptions:correct"
	ActionManagePlans       Action = "plans:manage"
	ActionEmployeeDashboard Action = "dashboard:employee"
	ActionAdminDashboard    Action = "dashboard:admin"
	ActionListUsers         Action = "users:list"
	ActionManageEmployees   Action = "employees:manage"
	ActionPayCommission     Action = "commissions:pay"
)

var rules = map[Action][]models.Role{
	ActionCreateLetter:      {models.RoleUser},
	ActionViewLetter:        {models.RoleUser, models.RoleAdmin},
	ActionListAllLetters:    {models.RoleAdmin},
	ActionReviewLetter:      {models.RoleAdmin},
	ActionRetryGeneration:   {models.RoleUser, models.RoleAdmin},
	ActionDownloadLetter:    {models.RoleUser},
	ActionAdminDownload:     {models.RoleAdmin},
	ActionRenderLetter:      {models.RoleAdmin},
	ActionPurchase:          {models.RoleUser},
	ActionViewSubscription:  {models.RoleUser, models.RoleEmployee, models.RoleAdmin},
	ActionCorrectCredits:    {models.RoleAdmin},
	ActionManagePlans:       {models.RoleAdmin},
	ActionEmployeeDashboard: {models.RoleEmployee},
	ActionAdminDashboard:    {models.RoleAdmin},
	ActionListUsers:         {models.RoleAdmin},
	ActionManageEmployees:   {models.RoleAdmin},
	ActionPayCommission:     {models.RoleAdmin},
}

// Allow сообщает, разрешено ли роли действие. Неизвестные действия запрещены.
func Allow(role models.Role, action Action) bool {
	for _, r := range rules[action] {
		if r == role {
			return true
		}
	}
	return false
}

// CanAccessLetter — владелец письма или администратор.
func CanAccessLetter(p models.Principal, l *models.Letter) bool {
	if l == nil {
		return false
	}
	return p.Role == models.RoleAdmin || (p.UserID != "" && p.UserID == l.UserID)
}

// IsOwner — письмо принадлежит вызывающему.
func IsOwner(p models.Principal, l *models.Letter) bool {
	return l != nil && p.UserID != "" && p.UserID == l.UserID
}
