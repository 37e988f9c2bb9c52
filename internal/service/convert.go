package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/rpc"
)

// expenseInput converts a wire expense into engine input, turning decimal amounts
// into minor units of the expense currency.
func expenseInput(req *rpc.CreateExpenseRequest) (ledger.ExpenseInput, error) {
	currency, err := models.NormalizeCurrency(req.Currency)
	if err != nil {
		return ledger.ExpenseInput{}, &apperr.ValidationError{Field: "currency", Err: err}
	}
	amount, err := toMinor("amount", req.Amount, currency)
	if err != nil {
		return ledger.ExpenseInput{}, err
	}
	splitType, err := models.ParseSplitType(req.SplitType)
	if err != nil {
		return ledger.ExpenseInput{}, &apperr.ValidationError{Field: "splitType", Err: err}
	}

	participants := make([]models.Participant, len(req.Participants))
	for i, p := range req.Participants {
		share, err := toShare(i, p, currency)
		if err != nil {
			return ledger.ExpenseInput{}, err
		}
		participants[i] = models.Participant{UserID: p.UserID, Share: share}
	}

	in := ledger.ExpenseInput{
		Description:  req.Description,
		Category:     models.Category(req.Category),
		Amount:       amount,
		Currency:     currency,
		PaidBy:       req.PaidBy,
		GroupID:      req.GroupID,
		SplitType:    splitType,
		Participants: participants,
	}
	if req.ExpenseDate != nil {
		in.ExpenseDate = *req.ExpenseDate
	}
	return in, nil
}

// toShare builds the payload from whichever parameter the participant supplied.
// A payload of the wrong kind is left for the split calculator to reject.
func toShare(i int, p rpc.Participant, currency string) (models.Share, error) {
	field := fmt.Sprintf("participants[%d]", i)
	set := 0
	for _, ok := range []bool{p.Amount != nil, p.Percentage != nil, p.Shares != nil} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return nil, &apperr.ValidationError{Field: field, Reason: "set only one of amount, percentage, shares", ParticipantID: p.UserID}
	}

	var (
		share models.Share
		err   error
	)
	switch {
	case p.Amount != nil:
		var minor int64
		if minor, err = toMinor(field+".amount", *p.Amount, currency); err != nil {
			return nil, err
		}
		share, err = models.NewExactShare(minor)
	case p.Percentage != nil:
		share, err = models.NewPercentageShare(*p.Percentage)
	case p.Shares != nil:
		share, err = models.NewSharesShare(*p.Shares)
	}
	if err != nil {
		return nil, &apperr.ValidationError{Field: field, Err: err, ParticipantID: p.UserID}
	}
	return share, nil
}

func toMinor(field string, amount decimal.Decimal, currency string) (int64, error) {
	minor, err := models.ToMinor(amount, currency)
	if err != nil {
		return 0, &apperr.ValidationError{Field: field, Err: err}
	}
	return minor, nil
}

func toExpense(e *models.Expense) *rpc.Expense {
	return &rpc.Expense{
		ID:          e.ID,
		Description: e.Description,
		Category:    string(e.Category),
		Amount:      models.FromMinor(e.Amount, e.Currency),
		Currency:    e.Currency,
		PaidBy:      e.PaidBy,
		GroupID:     e.GroupID,
		SplitType:   string(e.SplitType),
		Splits:      toSplits(e),
		ExpenseDate: e.ExpenseDate,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toSplits(e *models.Expense) []rpc.Split {
	splits := make([]rpc.Split, len(e.Splits))
	for i, s := range e.Splits {
		splits[i] = rpc.Split{
			UserID:     s.UserID,
			Amount:     models.FromMinor(s.Amount, e.Currency),
			Percentage: s.Percentage,
			Shares:     s.Shares,
		}
	}
	return splits
}

func toExpenses(list []*models.Expense) []*rpc.Expense {
	out := make([]*rpc.Expense, len(list))
	for i, e := range list {
		out[i] = toExpense(e)
	}
	return out
}

func toBalances(list []models.Balance) []rpc.Balance {
	out := make([]rpc.Balance, len(list))
	for i, b := range list {
		out[i] = rpc.Balance{
			FromUserID: b.FromUserID,
			ToUserID:   b.ToUserID,
			GroupID:    b.GroupID,
			Currency:   b.Currency,
			Amount:     models.FromMinor(b.Amount, b.Currency),
			UpdatedAt:  b.UpdatedAt,
		}
	}
	return out
}

func toSettlement(s *models.Settlement) *rpc.Settlement {
	return &rpc.Settlement{
		ID:         s.ID,
		GroupID:    s.GroupID,
		FromUserID: s.FromUserID,
		ToUserID:   s.ToUserID,
		Amount:     models.FromMinor(s.Amount, s.Currency),
		Currency:   s.Currency,
		Note:       s.Note,
		CreatedBy:  s.CreatedBy,
		CreatedAt:  s.CreatedAt,
	}
}

func toSettlements(list []*models.Settlement) []*rpc.Settlement {
	out := make([]*rpc.Settlement, len(list))
	for i, s := range list {
		out[i] = toSettlement(s)
	}
	return out
}

func toPayments(list []calculator.DebtEdge) []rpc.Payment {
	out := make([]rpc.Payment, len(list))
	for i, d := range list {
		out[i] = rpc.Payment{
			FromUserID: d.From,
			ToUserID:   d.To,
			Currency:   d.Currency,
			Amount:     models.FromMinor(d.Amount, d.Currency),
		}
	}
	return out
}

func toPositions(list []calculator.MemberBalance) []rpc.MemberPosition {
	out := make([]rpc.MemberPosition, len(list))
	for i, m := range list {
		out[i] = rpc.MemberPosition{
			UserID:   m.UserID,
			Currency: m.Currency,
			Net:      models.FromMinor(m.NetBalance, m.Currency),
		}
	}
	return out
}

func toGroup(g *models.Group) *rpc.Group {
	return &rpc.Group{
		ID:        g.ID,
		Name:      g.Name,
		AdminID:   g.AdminID,
		Members:   g.Members,
		CreatedAt: g.CreatedAt,
	}
}
