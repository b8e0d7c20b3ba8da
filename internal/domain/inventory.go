package domain

import "time"

// InventoryState enumerates fleet states for a serviceable unit.
type InventoryState string

const (
	InventoryStateReady     InventoryState = "READY"
	InventoryStateInService InventoryState = "IN_SERVICE"
	InventoryStateRetired   InventoryState = "RETIRED"
)

// InventoryItem is one unit of the serviced fleet. Ready count across the
// fleet drives stockout detection.
type InventoryItem struct {
	ID        string
	Label     string
	State     InventoryState
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
