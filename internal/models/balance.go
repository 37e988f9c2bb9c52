package models

import (
	"fmt"
	"time"
)

// PersonalScope names the scope of balances that belong to no group.
const PersonalScope = "personal"

// ScopeOf maps an optional group ID to its scope name.
func ScopeOf(groupID string) string {
	if groupID == "" {
		return PersonalScope
	}
	return groupID
}

// EdgeKey identifies the single balance edge allowed per unordered user pair,
// currency and scope. UserA always sorts before UserB.
type EdgeKey struct {
	UserA    string
	UserB    string
	Currency string
	Scope    string
}

// NewEdgeKey builds the canonical key for a pair regardless of argument order.
func NewEdgeKey(u1, u2, currency, groupID string) EdgeKey {
	if CompareUserIDs(u1, u2) > 0 {
		u1, u2 = u2, u1
	}
	return EdgeKey{UserA: u1, UserB: u2, Currency: currency, Scope: ScopeOf(groupID)}
}

// GroupID returns the group of the key's scope, or "" for personal balances.
func (k EdgeKey) GroupID() string {
	if k.Scope == PersonalScope {
		return ""
	}
	return k.Scope
}

// String renders the key for lock names and logs.
func (k EdgeKey) String() string {
	return fmt.Sprintf("edge:%s:%s:%s:%s", k.Scope, k.Currency, k.UserA, k.UserB)
}

// Balance is a directed edge: FromUserID owes ToUserID Amount minor units of Currency
// within GroupID (empty = personal). A stored balance is always strictly positive.
type Balance struct {
	FromUserID string
	ToUserID   string
	GroupID    string
	Currency   string
	Amount     int64
	UpdatedAt  time.Time
}

// Key returns the canonical key of the edge.
func (b Balance) Key() EdgeKey {
	return NewEdgeKey(b.FromUserID, b.ToUserID, b.Currency, b.GroupID)
}

// Signed returns the amount relative to the key orientation:
// positive when UserA owes UserB, negative when UserB owes UserA.
func (b Balance) Signed() int64 {
	if b.FromUserID == b.Key().UserA {
		return b.Amount
	}
	return -b.Amount
}
