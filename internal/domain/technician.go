package domain

import "time"

// TechnicianRole enumerates internal operator roles.
type TechnicianRole string

const (
	RoleTechnician  TechnicianRole = "TECHNICIAN"
	RoleQCInspector TechnicianRole = "QC_INSPECTOR"
	RoleAdmin       TechnicianRole = "ADMIN"
)

// Technician models a repair technician, QC inspector or administrator.
type Technician struct {
	ID             string
	Name           string
	TelegramChatID *int64
	Role           TechnicianRole
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
