package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/legal-letters/internal/models"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		role   models.Role
		action Action
		want   bool
	}{
		{models.RoleUser, ActionCreateLetter, true},
		{models.RoleAdmin, ActionCreateLetter, false},
		{models.RoleEmployee, ActionCreateLetter, false},
		{models.RoleUser, ActionReviewLetter, false},
		{models.RoleAdmin, ActionReviewLetter, true},
		{models.RoleUser, ActionDownloadLetter, true},
		{models.RoleAdmin, ActionDownloadLetter, false},
		{models.RoleAdmin, ActionAdminDownload, true},
		{models.RoleUser, ActionAdminDownload, false},
		{models.RoleEmployee, ActionEmployeeDashboard, true},
		{models.RoleAdmin, ActionEmployeeDashboard, false},
		{models.RoleUser, ActionAdminDashboard, false},
		{models.RoleAdmin, ActionCorrectCredits, true},
		{models.RoleAdmin, ActionManagePlans, true},
		{models.RoleEmployee, ActionManagePlans, false},
		{models.Role("root"), ActionAdminDashboard, false},
		{models.RoleAdmin, Action("unknown"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+" "+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, Allow(tt.role, tt.action))
		})
	}
}

func TestCanAccessLetter(t *testing.T) {
	l := &models.Letter{ID: "l1", UserID: "u1"}

	assert.True(t, CanAccessLetter(models.Principal{UserID: "u1", Role: models.RoleUser}, l))
	assert.False(t, CanAccessLetter(models.Principal{UserID: "u2", Role: models.RoleUser}, l))
	assert.True(t, CanAccessLetter(models.Principal{UserID: "a1", Role: models.RoleAdmin}, l))
	assert.False(t, CanAccessLetter(models.Principal{Role: models.RoleUser}, &models.Letter{}))
	assert.False(t, CanAccessLetter(models.Principal{UserID: "u1", Role: models.RoleAdmin}, nil))

	assert.True(t, IsOwner(models.Principal{UserID: "u1"}, l))
	assert.False(t, IsOwner(models.Principal{UserID: "a1", Role: models.RoleAdmin}, l))
}
