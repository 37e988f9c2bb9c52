package models

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Category classifies an expense for reporting.
type Category string

const (
	CategoryFood          Category = "FOOD"
	CategoryTravel        Category = "TRAVEL"
	CategoryRent          Category = "RENT"
	CategoryUtilities     Category = "UTILITIES"
	CategoryEntertainment Category = "ENTERTAINMENT"
	CategoryShopping      Category = "SHOPPING"
	CategoryHealthcare    Category = "HEALTHCARE"
	CategoryEducation     Category = "EDUCATION"
	CategoryOther         Category = "OTHER"
)

// Categories lists every accepted category.
var Categories = []Category{
	CategoryFood, CategoryTravel, CategoryRent, CategoryUtilities, CategoryEntertainment,
	CategoryShopping, CategoryHealthcare, CategoryEducation, CategoryOther,
}

// ErrUnknownCategory is returned for a category outside Categories.
var ErrUnknownCategory = errors.New("unknown expense category")

// ParseCategory parses a category name case-insensitively. Empty means CategoryOther.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c == "" {
		return CategoryOther, nil
	}
	if !slices.Contains(Categories, c) {
		return "", ErrUnknownCategory
	}
	return c, nil
}

// Expense is a payment by one user shared among participants.
// Once accepted, its ledger effect is owned by the ledger engine.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Description is a short free-text label (e.g., "Dinner at Toit").
	Description string

	// Category defaults to CategoryOther.
	Category Category

	// Amount is the total in minor units of Currency. Always positive.
	Amount int64

	// Currency is an upper-case ISO 4217 code.
	Currency string

	// PaidBy is the user who paid the full amount.
	PaidBy string

	// GroupID is the group scope; empty for personal expenses.
	GroupID string

	// SplitType is the strategy used to compute Splits.
	SplitType SplitType

	// Splits are the computed per-participant shares. They always sum to Amount.
	Splits []ExpenseSplit

	// ExpenseDate is when the expense happened; defaults to creation time.
	ExpenseDate time.Time

	// CreatedBy is the session user that recorded the expense.
	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpenseSplit is one participant's derived share of an expense.
type ExpenseSplit struct {
	ExpenseID string
	UserID    string

	// Amount is the computed share in minor units.
	Amount int64

	// Percentage is the supplied percentage for PERCENTAGE splits, empty otherwise.
	Percentage string

	// Shares is the supplied weight for SHARES splits, zero otherwise.
	Shares int64
}

// SplitTotal sums the split amounts.
func (e *Expense) SplitTotal() int64 {
	var total int64
	for _, s := range e.Splits {
		total += s.Amount
	}
	return total
}

// Involves reports whether userID paid for or takes part in the expense.
func (e *Expense) Involves(userID string) bool {
	if e.PaidBy == userID {
		return true
	}
	for _, s := range e.Splits {
		if s.UserID == userID {
			return true
		}
	}
	return false
}
