package calculator

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
)

// PercentageTolerance is how far the sum of PERCENTAGE participants may drift from 100.
var PercentageTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// CalculateSplit divides amount (minor units) among participants according to strategy.
//
// The returned splits are ordered by ascending user ID and always sum exactly to amount.
// Rounding leftovers are handed out one minor unit at a time in that same order, so the
// lowest IDs absorb the odd cent.
//
// For EQUAL, participants may carry a nil Share. For every other strategy each
// participant must carry the Share variant matching the strategy.
func CalculateSplit(amount int64, strategy models.SplitType, participants []models.Participant) ([]models.ExpenseSplit, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount", "must be positive")
	}
	if len(participants) == 0 {
		return nil, apperr.Validation("participants", "at least one participant is required")
	}

	ordered, err := checkParticipants(strategy, participants)
	if err != nil {
		return nil, err
	}

	var splits []models.ExpenseSplit
	switch strategy {
	case models.SplitEqual:
		splits = equalSplit(amount, ordered)
	case models.SplitExact:
		splits, err = exactSplit(amount, ordered)
	case models.SplitPercentage:
		splits, err = percentageSplit(amount, ordered)
	case models.SplitShares:
		splits, err = sharesSplit(amount, ordered)
	default:
		return nil, &apperr.ValidationError{Field: "splitType", Err: models.ErrUnknownSplitType}
	}
	if err != nil {
		return nil, err
	}

	var total int64
	for _, s := range splits {
		total += s.Amount
	}
	if total != amount {
		return nil, fmt.Errorf("split of %d produced total %d", amount, total)
	}
	return splits, nil
}

// checkParticipants rejects empty or duplicate IDs and mismatched payloads, and returns
// the participants sorted by user ID.
func checkParticipants(strategy models.SplitType, participants []models.Participant) ([]models.Participant, error) {
	seen := make(map[string]bool, len(participants))
	for i, p := range participants {
		field := fmt.Sprintf("participants[%d]", i)
		if p.UserID == "" {
			return nil, apperr.Validation(field+".userId", "is required")
		}
		if seen[p.UserID] {
			return nil, &apperr.ValidationError{Field: "participants", Reason: "duplicate participant", ParticipantID: p.UserID}
		}
		seen[p.UserID] = true

		if p.Share == nil {
			if strategy == models.SplitEqual {
				continue
			}
			return nil, &apperr.ValidationError{
				Field:         field,
				Reason:        fmt.Sprintf("missing %s parameter", strategy),
				ParticipantID: p.UserID,
			}
		}
		if p.Share.Strategy() != strategy {
			return nil, &apperr.ValidationError{
				Field:         field,
				Reason:        fmt.Sprintf("%s parameter supplied for a %s split", p.Share.Strategy(), strategy),
				ParticipantID: p.UserID,
			}
		}
	}

	ordered := slices.Clone(participants)
	slices.SortFunc(ordered, func(a, b models.Participant) int {
		return models.CompareUserIDs(a.UserID, b.UserID)
	})
	return ordered, nil
}

func newSplits(participants []models.Participant) []models.ExpenseSplit {
	splits := make([]models.ExpenseSplit, len(participants))
	for i, p := range participants {
		splits[i].UserID = p.UserID
	}
	return splits
}

func equalSplit(amount int64, participants []models.Participant) []models.ExpenseSplit {
	splits := newSplits(participants)
	n := int64(len(splits))
	for i := range splits {
		splits[i].Amount = amount / n
	}
	distributeRemainder(splits, amount%n)
	return splits
}

func exactSplit(amount int64, participants []models.Participant) ([]models.ExpenseSplit, error) {
	splits := newSplits(participants)
	var sum int64
	for i, p := range participants {
		exact := p.Share.(models.ExactShare).Amount()
		if exact < 0 {
			return nil, &apperr.ValidationError{Field: "participants", Err: models.ErrNegativeExact, ParticipantID: p.UserID}
		}
		if exact > amount-sum {
			return nil, apperr.Validation("participants", fmt.Sprintf("exact amounts exceed the expense amount %d", amount))
		}
		splits[i].Amount = exact
		sum += exact
	}
	if sum != amount {
		return nil, apperr.Validation("participants", fmt.Sprintf("exact amounts sum to %d, expected %d", sum, amount))
	}
	return splits, nil
}

func percentageSplit(amount int64, participants []models.Participant) ([]models.ExpenseSplit, error) {
	splits := newSplits(participants)
	total := decimal.NewFromInt(amount)
	sumPct := decimal.Zero
	var assigned int64
	for i, p := range participants {
		pct := p.Share.(models.PercentageShare).Percent()
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return nil, &apperr.ValidationError{Field: "participants", Err: models.ErrPercentageRange, ParticipantID: p.UserID}
		}
		sumPct = sumPct.Add(pct)
		splits[i].Percentage = pct.String()
		splits[i].Amount = total.Mul(pct).Div(hundred).Round(0).IntPart()
		assigned += splits[i].Amount
	}
	if sumPct.Sub(hundred).Abs().GreaterThan(PercentageTolerance) {
		return nil, apperr.Validation("participants", fmt.Sprintf("percentages sum to %s, expected 100", sumPct.String()))
	}
	distributeRemainder(splits, amount-assigned)
	return splits, nil
}

func sharesSplit(amount int64, participants []models.Participant) ([]models.ExpenseSplit, error) {
	splits := newSplits(participants)
	var totalShares int64
	for _, p := range participants {
		count := p.Share.(models.SharesShare).Count()
		if count < 1 {
			return nil, &apperr.ValidationError{Field: "participants", Err: models.ErrNonPositiveShares, ParticipantID: p.UserID}
		}
		totalShares += count
	}

	total := decimal.NewFromInt(amount)
	denominator := decimal.NewFromInt(totalShares)
	var assigned int64
	for i, p := range participants {
		count := p.Share.(models.SharesShare).Count()
		splits[i].Shares = count
		splits[i].Amount = total.Mul(decimal.NewFromInt(count)).Div(denominator).Round(0).IntPart()
		assigned += splits[i].Amount
	}
	distributeRemainder(splits, amount-assigned)
	return splits, nil
}

// distributeRemainder moves the shares onto the exact total. A positive remainder adds one
// minor unit per participant in order; a negative one (possible after rounding up) takes one
// minor unit per participant in order, skipping shares that are already zero.
func distributeRemainder(splits []models.ExpenseSplit, remainder int64) {
	n := int64(len(splits))
	if remainder > 0 {
		each, rest := remainder/n, remainder%n
		for i := range splits {
			splits[i].Amount += each
			if int64(i) < rest {
				splits[i].Amount++
			}
		}
		return
	}
	for remainder < 0 {
		progressed := false
		for i := range splits {
			if remainder == 0 {
				break
			}
			if splits[i].Amount > 0 {
				splits[i].Amount--
				remainder++
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}
