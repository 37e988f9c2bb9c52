package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/pkg/rpc"
)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	base
	engine  *ledger.Engine
	queries *ledger.Queries
}

// NewExpenseService creates an ExpenseService over the ledger engine.
func NewExpenseService(engine *ledger.Engine, logger *slog.Logger) *ExpenseService {
	return &ExpenseService{base: base{logger: logger}, engine: engine, queries: engine.Queries()}
}

func session(ctx context.Context) ledger.Session {
	return ledger.Session{UserID: middleware.GetUserID(ctx)}
}

// CreateExpense records an expense and applies its balances.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[rpc.CreateExpenseRequest]) (*connect.Response[rpc.ExpenseResponse], error) {
	s.logger.InfoContext(ctx, "CreateExpense request received",
		"paid_by", req.Msg.PaidBy,
		"group_id", req.Msg.GroupID,
		"split_type", req.Msg.SplitType,
		"participants_count", len(req.Msg.Participants),
	)

	in, err := expenseInput(req.Msg)
	if err != nil {
		return nil, s.fail(ctx, "CreateExpense", err)
	}
	expense, err := s.engine.CreateExpense(ctx, session(ctx), in)
	if err != nil {
		return nil, s.fail(ctx, "CreateExpense", err)
	}

	s.logger.InfoContext(ctx, "Expense created", "expense_id", expense.ID, "amount", expense.Amount, "currency", expense.Currency)
	return connect.NewResponse(&rpc.ExpenseResponse{Expense: toExpense(expense)}), nil
}

// GetExpense returns an expense with its splits.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[rpc.GetExpenseRequest]) (*connect.Response[rpc.ExpenseResponse], error) {
	expense, err := s.queries.GetExpense(ctx, session(ctx), req.Msg.ExpenseID)
	if err != nil {
		return nil, s.fail(ctx, "GetExpense", err)
	}
	return connect.NewResponse(&rpc.ExpenseResponse{Expense: toExpense(expense)}), nil
}

// UpdateExpense replaces an expense and re-applies its balances.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[rpc.UpdateExpenseRequest]) (*connect.Response[rpc.ExpenseResponse], error) {
	s.logger.InfoContext(ctx, "UpdateExpense request received", "expense_id", req.Msg.ExpenseID)

	in, err := expenseInput(&req.Msg.Expense)
	if err != nil {
		return nil, s.fail(ctx, "UpdateExpense", err)
	}
	expense, err := s.engine.UpdateExpense(ctx, session(ctx), req.Msg.ExpenseID, in)
	if err != nil {
		return nil, s.fail(ctx, "UpdateExpense", err)
	}

	s.logger.InfoContext(ctx, "Expense updated", "expense_id", expense.ID)
	return connect.NewResponse(&rpc.ExpenseResponse{Expense: toExpense(expense)}), nil
}

// DeleteExpense removes an expense and reverses its balances.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[rpc.DeleteExpenseRequest]) (*connect.Response[rpc.DeleteExpenseResponse], error) {
	s.logger.InfoContext(ctx, "DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	if err := s.engine.DeleteExpense(ctx, session(ctx), req.Msg.ExpenseID); err != nil {
		return nil, s.fail(ctx, "DeleteExpense", err)
	}

	s.logger.InfoContext(ctx, "Expense deleted", "expense_id", req.Msg.ExpenseID)
	return connect.NewResponse(&rpc.DeleteExpenseResponse{}), nil
}

// GetExpenseSplits returns only the computed shares of an expense.
func (s *ExpenseService) GetExpenseSplits(ctx context.Context, req *connect.Request[rpc.GetExpenseRequest]) (*connect.Response[rpc.GetExpenseSplitsResponse], error) {
	expense, err := s.queries.GetExpense(ctx, session(ctx), req.Msg.ExpenseID)
	if err != nil {
		return nil, s.fail(ctx, "GetExpenseSplits", err)
	}
	return connect.NewResponse(&rpc.GetExpenseSplitsResponse{Splits: toSplits(expense)}), nil
}

// ListGroupExpenses lists a group's expenses, newest first.
func (s *ExpenseService) ListGroupExpenses(ctx context.Context, req *connect.Request[rpc.ListGroupExpensesRequest]) (*connect.Response[rpc.ListExpensesResponse], error) {
	expenses, err := s.queries.GroupExpenses(ctx, session(ctx), req.Msg.GroupID)
	if err != nil {
		return nil, s.fail(ctx, "ListGroupExpenses", err)
	}
	return connect.NewResponse(&rpc.ListExpensesResponse{Expenses: toExpenses(expenses)}), nil
}

// ListPersonalExpenses lists the caller's expenses outside any group.
func (s *ExpenseService) ListPersonalExpenses(ctx context.Context, req *connect.Request[rpc.ListPersonalExpensesRequest]) (*connect.Response[rpc.ListExpensesResponse], error) {
	expenses, err := s.queries.PersonalExpenses(ctx, session(ctx), req.Msg.UserID)
	if err != nil {
		return nil, s.fail(ctx, "ListPersonalExpenses", err)
	}
	return connect.NewResponse(&rpc.ListExpensesResponse{Expenses: toExpenses(expenses)}), nil
}
