package models

// EmployeeDashboard — сводка для кабинета сотрудника.
type EmployeeDashboard struct {
	Employee    *Employee           `json:"employee"`
	Commissions []*CommissionRecord `json:"commissions"`
}

// AdminDashboard — сводка для кабинета администратора.
type AdminDashboard struct {
	TotalUsers      int         `json:"totalUsers"`
	TotalLetters    int         `json:"totalLetters"`
	ActiveEmployees int         `json:"activeEmployees"`
	RecentLetters   []*Letter   `json:"recentLetters"`
	TopEmployees    []*Employee `json:"topEmployees"`
}
