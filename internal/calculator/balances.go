package calculator

import (
	"cmp"
	"slices"

	"github.com/mmynk/splitledger/internal/models"
)

// DebtEdge represents a suggested payment from one person to another.
type DebtEdge struct {
	From     string // Person who owes
	To       string // Person who is owed
	Currency string
	Amount   int64 // Minor units
}

// MemberBalance represents one member's net position in one currency.
type MemberBalance struct {
	UserID     string
	Currency   string
	NetBalance int64 // Positive = owed money, Negative = owes money
}

// NetBalances collapses every edge touching userID into one signed total per currency.
// Scopes are aggregated away; currencies are never combined. Currencies that net to
// zero are kept so callers can tell "settled" from "never involved".
func NetBalances(userID string, edges []models.Balance) map[string]int64 {
	net := make(map[string]int64)
	for _, e := range edges {
		switch userID {
		case e.ToUserID:
			net[e.Currency] += e.Amount
		case e.FromUserID:
			net[e.Currency] -= e.Amount
		}
	}
	return net
}

// MemberBalances computes the net position of every user appearing in edges, per currency,
// ordered by currency then user ID.
func MemberBalances(edges []models.Balance) []MemberBalance {
	type key struct{ user, currency string }
	positions := make(map[key]int64)
	for _, e := range edges {
		positions[key{e.ToUserID, e.Currency}] += e.Amount
		positions[key{e.FromUserID, e.Currency}] -= e.Amount
	}

	balances := make([]MemberBalance, 0, len(positions))
	for k, v := range positions {
		balances = append(balances, MemberBalance{UserID: k.user, Currency: k.currency, NetBalance: v})
	}
	slices.SortFunc(balances, func(a, b MemberBalance) int {
		if c := cmp.Compare(a.Currency, b.Currency); c != 0 {
			return c
		}
		return models.CompareUserIDs(a.UserID, b.UserID)
	})
	return balances
}

// SimplifyDebts returns a short list of payments that would clear every edge given.
//
// Algorithm, per currency:
//   - collapse the edges into net positions per member
//   - sort debtors and creditors by magnitude (largest first, ties by user ID)
//   - greedily match the current debtor with the current creditor for the smaller
//     of the two amounts, advancing whichever side reaches zero
//
// The result never has more than (members - 1) payments per currency.
func SimplifyDebts(edges []models.Balance) []DebtEdge {
	byCurrency := make(map[string][]MemberBalance)
	for _, mb := range MemberBalances(edges) {
		byCurrency[mb.Currency] = append(byCurrency[mb.Currency], mb)
	}
	currencies := make([]string, 0, len(byCurrency))
	for c := range byCurrency {
		currencies = append(currencies, c)
	}
	slices.Sort(currencies)

	var debtEdges []DebtEdge
	for _, currency := range currencies {
		var creditors, debtors []MemberBalance
		for _, mb := range byCurrency[currency] {
			if mb.NetBalance > 0 {
				creditors = append(creditors, mb)
			} else if mb.NetBalance < 0 {
				mb.NetBalance = -mb.NetBalance
				debtors = append(debtors, mb)
			}
		}
		byMagnitude := func(a, b MemberBalance) int {
			if c := cmp.Compare(b.NetBalance, a.NetBalance); c != 0 {
				return c
			}
			return models.CompareUserIDs(a.UserID, b.UserID)
		}
		slices.SortFunc(creditors, byMagnitude)
		slices.SortFunc(debtors, byMagnitude)

		i, j := 0, 0
		for i < len(debtors) && j < len(creditors) {
			amount := min(debtors[i].NetBalance, creditors[j].NetBalance)
			debtEdges = append(debtEdges, DebtEdge{
				From:     debtors[i].UserID,
				To:       creditors[j].UserID,
				Currency: currency,
				Amount:   amount,
			})

			debtors[i].NetBalance -= amount
			creditors[j].NetBalance -= amount
			if debtors[i].NetBalance == 0 {
				i++
			}
			if creditors[j].NetBalance == 0 {
				j++
			}
		}
	}
	return debtEdges
}
