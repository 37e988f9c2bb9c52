package storage

import (
	"cmp"
	"slices"

	"github.com/mmynk/splitledger/internal/models"
)

// SortBalances orders edges by scope, currency, debtor then creditor so every backend
// returns the same sequence.
func SortBalances(balances []models.Balance) {
	slices.SortFunc(balances, func(a, b models.Balance) int {
		if c := cmp.Compare(models.ScopeOf(a.GroupID), models.ScopeOf(b.GroupID)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Currency, b.Currency); c != 0 {
			return c
		}
		if c := models.CompareUserIDs(a.FromUserID, b.FromUserID); c != 0 {
			return c
		}
		return models.CompareUserIDs(a.ToUserID, b.ToUserID)
	})
}

// SortSettlements orders settlements newest first, ties broken by ID.
func SortSettlements(settlements []*models.Settlement) {
	slices.SortFunc(settlements, func(a, b *models.Settlement) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// SortExpenses orders expenses by expense date, newest first, ties broken by creation time then ID.
func SortExpenses(expenses []*models.Expense) {
	slices.SortFunc(expenses, func(a, b *models.Expense) int {
		if c := b.ExpenseDate.Compare(a.ExpenseDate); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// SortSplits orders splits by ascending user ID.
func SortSplits(splits []models.ExpenseSplit) {
	slices.SortFunc(splits, func(a, b models.ExpenseSplit) int {
		return models.CompareUserIDs(a.UserID, b.UserID)
	})
}
