package models

import (
	"slices"
	"time"
)

// Group represents a named member set. The ledger treats it only as a scope for
// balances and settlements; membership changes never alter existing records.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Goa Trip").
	Name string

	// AdminID is the user who created the group. Admins may delete any group expense.
	AdminID string

	// Members is the list of user IDs in this group, including the admin.
	Members []string

	// CreatedAt is when the group was created.
	CreatedAt time.Time
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	return slices.Contains(g.Members, userID)
}

// IsAdmin reports whether userID administers the group.
func (g *Group) IsAdmin(userID string) bool {
	return g.AdminID != "" && g.AdminID == userID
}
