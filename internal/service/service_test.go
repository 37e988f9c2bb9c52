package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/lock"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/rpc"
)

type testClients struct {
	expenses rpc.ExpenseServiceClient
	balances rpc.BalanceServiceClient
	groups   rpc.GroupServiceClient
	tokens   *auth.JWTManager
}

// setupTestServer starts the three services over a temp-file SQLite store.
func setupTestServer(t *testing.T) *testClients {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := ledger.NewEngine(store, lock.NewLocal(time.Second), ledger.WithLogger(logger))
	tokens := auth.NewJWTManager("0123456789abcdef", time.Hour)

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(logger),
		middleware.RequireAuth(tokens),
		rpc.NewValidationInterceptor(),
	)
	mux := http.NewServeMux()
	mux.Handle(rpc.NewExpenseServiceHandler(NewExpenseService(engine, logger), interceptors))
	mux.Handle(rpc.NewBalanceServiceHandler(NewBalanceService(engine, logger), interceptors))
	mux.Handle(rpc.NewGroupServiceHandler(NewGroupService(store, logger), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testClients{
		expenses: rpc.NewExpenseServiceClient(server.Client(), server.URL),
		balances: rpc.NewBalanceServiceClient(server.Client(), server.URL),
		groups:   rpc.NewGroupServiceClient(server.Client(), server.URL),
		tokens:   tokens,
	}
}

// as builds a request authenticated as userID.
func as[T any](t *testing.T, c *testClients, userID string, msg *T) *connect.Request[T] {
	t.Helper()
	req := connect.NewRequest(msg)
	token, err := c.tokens.Generate(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func expectCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got success", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("expected %v, got %v (%v)", want, got, err)
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func createTrip(t *testing.T, c *testClients) string {
	t.Helper()
	resp, err := c.groups.CreateGroup(context.Background(), as(t, c, "alice", &rpc.CreateGroupRequest{
		Name:    "Goa Trip",
		Members: []string{"bob", "carol"},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return resp.Msg.Group.ID
}

func TestExpenseAndSettlementFlow(t *testing.T) {
	ctx := context.Background()
	c := setupTestServer(t)
	groupID := createTrip(t, c)

	created, err := c.expenses.CreateExpense(ctx, as(t, c, "alice", &rpc.CreateExpenseRequest{
		Description: "Dinner",
		Category:    "food",
		Amount:      dec("90"),
		Currency:    "INR",
		PaidBy:      "alice",
		GroupID:     groupID,
		SplitType:   "EQUAL",
		Participants: []rpc.Participant{
			{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"},
		},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	expense := created.Msg.Expense
	if expense.Category != "FOOD" || len(expense.Splits) != 3 || !expense.Splits[0].Amount.Equal(dec("30")) {
		t.Errorf("unexpected expense %+v", expense)
	}

	net, err := c.balances.GetNetBalance(ctx, as(t, c, "bob", &rpc.GetNetBalanceRequest{UserID: "bob"}))
	if err != nil {
		t.Fatalf("GetNetBalance failed: %v", err)
	}
	if net.Msg.Net["INR"] != "-30.00" {
		t.Errorf("expected bob at -30.00, got %v", net.Msg.Net)
	}

	if _, err := c.balances.CreateSettlement(ctx, as(t, c, "bob", &rpc.CreateSettlementRequest{
		FromUserID: "bob", ToUserID: "alice", Amount: dec("30"), Currency: "INR", GroupID: groupID, Note: "cash",
	})); err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}

	net, err = c.balances.GetNetBalance(ctx, as(t, c, "alice", &rpc.GetNetBalanceRequest{UserID: "alice"}))
	if err != nil {
		t.Fatalf("GetNetBalance failed: %v", err)
	}
	if net.Msg.Net["INR"] != "30.00" {
		t.Errorf("expected alice at 30.00, got %v", net.Msg.Net)
	}

	summary, err := c.balances.GetGroupSummary(ctx, as(t, c, "carol", &rpc.GetGroupSummaryRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroupSummary failed: %v", err)
	}
	if len(summary.Msg.Balances) != 1 || summary.Msg.Balances[0].FromUserID != "carol" {
		t.Errorf("unexpected balances %+v", summary.Msg.Balances)
	}
	if len(summary.Msg.Suggested) != 1 || !summary.Msg.Suggested[0].Amount.Equal(dec("30")) {
		t.Errorf("unexpected suggestions %+v", summary.Msg.Suggested)
	}
	if len(summary.Msg.Settlements) != 1 || summary.Msg.Settlements[0].Note != "cash" {
		t.Errorf("unexpected settlements %+v", summary.Msg.Settlements)
	}

	settlements, err := c.balances.ListUserSettlements(ctx, as(t, c, "bob", &rpc.ListUserSettlementsRequest{UserID: "bob"}))
	if err != nil || len(settlements.Msg.Settlements) != 1 {
		t.Errorf("expected 1 settlement for bob, got %+v (%v)", settlements, err)
	}

	list, err := c.expenses.ListGroupExpenses(ctx, as(t, c, "carol", &rpc.ListGroupExpensesRequest{GroupID: groupID}))
	if err != nil || len(list.Msg.Expenses) != 1 {
		t.Errorf("expected 1 group expense, got %+v (%v)", list, err)
	}
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	ctx := context.Background()
	c := setupTestServer(t)
	groupID := createTrip(t, c)

	share := func(v string) *decimal.Decimal { d := dec(v); return &d }
	created, err := c.expenses.CreateExpense(ctx, as(t, c, "bob", &rpc.CreateExpenseRequest{
		Amount: dec("100"), Currency: "USD", PaidBy: "bob", GroupID: groupID, SplitType: "PERCENTAGE",
		Participants: []rpc.Participant{
			{UserID: "bob", Percentage: share("50")},
			{UserID: "carol", Percentage: share("50")},
		},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	id := created.Msg.Expense.ID

	var two, three int64 = 2, 3
	_, err = c.expenses.UpdateExpense(ctx, as(t, c, "bob", &rpc.UpdateExpenseRequest{
		ExpenseID: id,
		Expense: rpc.CreateExpenseRequest{
			Amount: dec("50"), Currency: "USD", PaidBy: "bob", GroupID: groupID, SplitType: "SHARES",
			Participants: []rpc.Participant{{UserID: "alice", Shares: &two}, {UserID: "carol", Shares: &three}},
		},
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	balances, err := c.balances.GetGroupBalances(ctx, as(t, c, "alice", &rpc.GetGroupBalancesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	got := make(map[string]string)
	for _, b := range balances.Msg.Balances {
		got[b.FromUserID+">"+b.ToUserID] = b.Amount.String()
	}
	if len(got) != 2 || got["alice>bob"] != "20" || got["carol>bob"] != "30" {
		t.Errorf("unexpected balances %v", got)
	}

	splits, err := c.expenses.GetExpenseSplits(ctx, as(t, c, "carol", &rpc.GetExpenseRequest{ExpenseID: id}))
	if err != nil || len(splits.Msg.Splits) != 2 || splits.Msg.Splits[1].Shares != 3 {
		t.Errorf("unexpected splits %+v (%v)", splits, err)
	}

	_, err = c.expenses.DeleteExpense(ctx, as(t, c, "carol", &rpc.DeleteExpenseRequest{ExpenseID: id}))
	expectCode(t, err, connect.CodePermissionDenied)

	if _, err := c.expenses.DeleteExpense(ctx, as(t, c, "alice", &rpc.DeleteExpenseRequest{ExpenseID: id})); err != nil {
		t.Fatalf("admin DeleteExpense failed: %v", err)
	}
	_, err = c.expenses.GetExpense(ctx, as(t, c, "bob", &rpc.GetExpenseRequest{ExpenseID: id}))
	expectCode(t, err, connect.CodeNotFound)

	balances, err = c.balances.GetGroupBalances(ctx, as(t, c, "alice", &rpc.GetGroupBalancesRequest{GroupID: groupID}))
	if err != nil || len(balances.Msg.Balances) != 0 {
		t.Errorf("expected no balances after delete, got %+v (%v)", balances, err)
	}
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	c := setupTestServer(t)
	groupID := createTrip(t, c)

	equal := func(amount string, payer string) *rpc.CreateExpenseRequest {
		return &rpc.CreateExpenseRequest{
			Amount: dec(amount), Currency: "INR", PaidBy: payer, GroupID: groupID, SplitType: "EQUAL",
			Participants: []rpc.Participant{{UserID: "alice"}, {UserID: "bob"}},
		}
	}
	if _, err := c.expenses.CreateExpense(ctx, as(t, c, "alice", equal("10", "alice"))); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	_, err := c.expenses.CreateExpense(ctx, as(t, c, "alice", equal("0", "alice")))
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = c.expenses.CreateExpense(ctx, as(t, c, "alice", equal("10.001", "alice")))
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = c.expenses.CreateExpense(ctx, as(t, c, "mallory", equal("10", "alice")))
	expectCode(t, err, connect.CodePermissionDenied)

	_, err = c.balances.CreateSettlement(ctx, as(t, c, "bob", &rpc.CreateSettlementRequest{
		FromUserID: "bob", ToUserID: "alice", Amount: dec("6"), Currency: "INR", GroupID: groupID,
	}))
	expectCode(t, err, connect.CodeFailedPrecondition)

	_, err = c.balances.CreateSettlement(ctx, as(t, c, "alice", &rpc.CreateSettlementRequest{
		FromUserID: "alice", ToUserID: "bob", Amount: dec("1"), Currency: "INR", GroupID: groupID,
	}))
	expectCode(t, err, connect.CodeNotFound)

	_, err = c.balances.GetUserBalances(ctx, as(t, c, "bob", &rpc.GetUserBalancesRequest{UserID: "alice"}))
	expectCode(t, err, connect.CodePermissionDenied)

	_, err = c.balances.GetGroupBalances(ctx, as(t, c, "bob", &rpc.GetGroupBalancesRequest{GroupID: "missing"}))
	expectCode(t, err, connect.CodeNotFound)

	_, err = c.balances.GetGroupBalances(ctx, connect.NewRequest(&rpc.GetGroupBalancesRequest{GroupID: groupID}))
	expectCode(t, err, connect.CodeUnauthenticated)
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	c := setupTestServer(t)
	groupID := createTrip(t, c)

	resp, err := c.groups.AddMembers(ctx, as(t, c, "bob", &rpc.AddMembersRequest{GroupID: groupID, UserIDs: []string{"dave"}}))
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if len(resp.Msg.Group.Members) != 4 {
		t.Errorf("expected 4 members, got %v", resp.Msg.Group.Members)
	}

	_, err = c.groups.RemoveMember(ctx, as(t, c, "bob", &rpc.RemoveMemberRequest{GroupID: groupID, UserID: "dave"}))
	expectCode(t, err, connect.CodePermissionDenied)

	_, err = c.groups.RemoveMember(ctx, as(t, c, "alice", &rpc.RemoveMemberRequest{GroupID: groupID, UserID: "alice"}))
	expectCode(t, err, connect.CodeInvalidArgument)

	resp, err = c.groups.RemoveMember(ctx, as(t, c, "alice", &rpc.RemoveMemberRequest{GroupID: groupID, UserID: "dave"}))
	if err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if len(resp.Msg.Group.Members) != 3 {
		t.Errorf("expected 3 members, got %v", resp.Msg.Group.Members)
	}

	_, err = c.groups.GetGroup(ctx, as(t, c, "dave", &rpc.GetGroupRequest{GroupID: groupID}))
	expectCode(t, err, connect.CodePermissionDenied)

	groups, err := c.groups.ListGroups(ctx, as(t, c, "carol", &rpc.ListGroupsRequest{}))
	if err != nil || len(groups.Msg.Groups) != 1 || groups.Msg.Groups[0].AdminID != "alice" {
		t.Errorf("unexpected groups %+v (%v)", groups, err)
	}

	_, err = c.groups.CreateGroup(ctx, as(t, c, "alice", &rpc.CreateGroupRequest{}))
	expectCode(t, err, connect.CodeInvalidArgument)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{apperr.Validation("amount", "must be positive"), connect.CodeInvalidArgument},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("expense", "x")), connect.CodeNotFound},
		{apperr.Permission("u", "read", "group g"), connect.CodePermissionDenied},
		{&apperr.ExcessSettlementError{}, connect.CodeFailedPrecondition},
		{&apperr.ConflictError{Operation: "create_expense", Err: errors.New("busy")}, connect.CodeAborted},
		{context.DeadlineExceeded, connect.CodeDeadlineExceeded},
		{connect.NewError(connect.CodeUnauthenticated, errors.New("no")), connect.CodeUnauthenticated},
		{errors.New("disk on fire"), connect.CodeInternal},
	}
	for _, tt := range tests {
		if got := codeOf(tt.err); got != tt.want {
			t.Errorf("codeOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
