// Package storagetest holds behavior checks shared by every storage.Store backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("Groups", func(t *testing.T) { testGroups(t, newStore(t)) })
	t.Run("ExpenseLifecycle", func(t *testing.T) { testExpenseLifecycle(t, newStore(t)) })
	t.Run("BalancesAreKeyedByPair", func(t *testing.T) { testBalances(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("Settlements", func(t *testing.T) { testSettlements(t, newStore(t)) })
}

func mustCreateGroup(t *testing.T, s storage.Store, admin string, members ...string) *models.Group {
	t.Helper()
	g := &models.Group{Name: "Trip", AdminID: admin, Members: append([]string{admin}, members...)}
	if err := s.CreateGroup(context.Background(), g); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return g
}

func testGroups(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := mustCreateGroup(t, s, "2", "10", "1")
	if g.ID == "" {
		t.Fatal("expected group ID to be generated")
	}

	got, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Name != "Trip" || got.AdminID != "2" {
		t.Errorf("got %+v", got)
	}
	want := []string{"1", "2", "10"}
	if len(got.Members) != len(want) {
		t.Fatalf("members = %v, want %v", got.Members, want)
	}
	for i := range want {
		if got.Members[i] != want[i] {
			t.Errorf("members = %v, want %v", got.Members, want)
			break
		}
	}

	if err := s.AddGroupMembers(ctx, g.ID, []string{"3", "1"}); err != nil {
		t.Fatalf("AddGroupMembers failed: %v", err)
	}
	if err := s.RemoveGroupMember(ctx, g.ID, "10"); err != nil {
		t.Fatalf("RemoveGroupMember failed: %v", err)
	}
	got, _ = s.GetGroup(ctx, g.ID)
	if !got.HasMember("3") || got.HasMember("10") || len(got.Members) != 3 {
		t.Errorf("members after changes = %v", got.Members)
	}

	groups, err := s.ListGroupsByMember(ctx, "3")
	if err != nil || len(groups) != 1 || groups[0].ID != g.ID {
		t.Errorf("ListGroupsByMember = %v, %v", groups, err)
	}

	var nf *apperr.NotFoundError
	if _, err := s.GetGroup(ctx, "missing"); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	if err := s.RemoveGroupMember(ctx, g.ID, "10"); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError removing absent member, got %v", err)
	}
}

func testExpenseLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := mustCreateGroup(t, s, "A", "B", "C")
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	expense := &models.Expense{
		Description: "Dinner",
		Category:    models.CategoryFood,
		Amount:      9000,
		Currency:    "INR",
		PaidBy:      "A",
		GroupID:     g.ID,
		SplitType:   models.SplitShares,
		ExpenseDate: date,
		CreatedBy:   "A",
		Splits: []models.ExpenseSplit{
			{UserID: "A", Amount: 3000, Shares: 1},
			{UserID: "B", Amount: 6000, Shares: 2},
		},
	}
	err := s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.CreateExpense(ctx, expense)
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if expense.ID == "" || expense.CreatedAt.IsZero() {
		t.Fatalf("expected ID and CreatedAt to be set: %+v", expense)
	}

	got, err := s.GetExpense(ctx, expense.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if got.Amount != 9000 || got.Currency != "INR" || got.GroupID != g.ID || got.Category != models.CategoryFood {
		t.Errorf("got %+v", got)
	}
	if !got.ExpenseDate.Equal(date) {
		t.Errorf("ExpenseDate = %v, want %v", got.ExpenseDate, date)
	}
	if len(got.Splits) != 2 || got.Splits[1].Shares != 2 || got.Splits[1].ExpenseID != expense.ID {
		t.Errorf("splits = %+v", got.Splits)
	}

	personal := &models.Expense{
		Amount: 500, Currency: "USD", PaidBy: "C", SplitType: models.SplitEqual, CreatedBy: "C",
		Category: models.CategoryOther,
		Splits:   []models.ExpenseSplit{{UserID: "B", Amount: 250}, {UserID: "C", Amount: 250}},
	}
	if err := s.WithTx(ctx, func(tx storage.Tx) error { return tx.CreateExpense(ctx, personal) }); err != nil {
		t.Fatalf("CreateExpense (personal) failed: %v", err)
	}

	byGroup, _ := s.ListExpensesByGroup(ctx, g.ID)
	if len(byGroup) != 1 || byGroup[0].ID != expense.ID {
		t.Errorf("ListExpensesByGroup = %v", byGroup)
	}
	mine, _ := s.ListPersonalExpenses(ctx, "B")
	if len(mine) != 1 || mine[0].ID != personal.ID {
		t.Errorf("ListPersonalExpenses(B) = %v", mine)
	}
	if none, _ := s.ListPersonalExpenses(ctx, "A"); len(none) != 0 {
		t.Errorf("ListPersonalExpenses(A) = %v, want none", none)
	}

	got.Amount = 1200
	got.Splits = []models.ExpenseSplit{{UserID: "C", Amount: 1200}}
	got.UpdatedAt = time.Time{}
	if err := s.WithTx(ctx, func(tx storage.Tx) error { return tx.UpdateExpense(ctx, got) }); err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	updated, _ := s.GetExpense(ctx, expense.ID)
	if updated.Amount != 1200 || len(updated.Splits) != 1 || updated.Splits[0].UserID != "C" {
		t.Errorf("after update got %+v", updated)
	}

	if err := s.WithTx(ctx, func(tx storage.Tx) error { return tx.DeleteExpense(ctx, expense.ID) }); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	var nf *apperr.NotFoundError
	if _, err := s.GetExpense(ctx, expense.ID); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
	err = s.WithTx(ctx, func(tx storage.Tx) error { return tx.DeleteExpense(ctx, expense.ID) })
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError deleting twice, got %v", err)
	}
}

func testBalances(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := mustCreateGroup(t, s, "A", "B")

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.PutBalance(ctx, models.Balance{FromUserID: "B", ToUserID: "A", GroupID: g.ID, Currency: "INR", Amount: 5000}); err != nil {
			return err
		}
		// Same pair, flipped direction, replaces the edge.
		if err := tx.PutBalance(ctx, models.Balance{FromUserID: "A", ToUserID: "B", GroupID: g.ID, Currency: "INR", Amount: 700}); err != nil {
			return err
		}
		if err := tx.PutBalance(ctx, models.Balance{FromUserID: "B", ToUserID: "A", Currency: "USD", Amount: 100}); err != nil {
			return err
		}
		b, err := tx.GetBalance(ctx, models.NewEdgeKey("B", "A", "INR", g.ID))
		if err != nil {
			return err
		}
		if b == nil || b.FromUserID != "A" || b.Amount != 700 {
			t.Errorf("in-tx read = %+v", b)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	if err := s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.PutBalance(ctx, models.Balance{FromUserID: "A", ToUserID: "B", Currency: "USD", Amount: 0})
	}); err == nil {
		t.Error("expected zero balance to be refused")
	}

	groupEdges, _ := s.ListBalancesByGroup(ctx, g.ID)
	if len(groupEdges) != 1 || groupEdges[0].FromUserID != "A" || groupEdges[0].Amount != 700 || groupEdges[0].GroupID != g.ID {
		t.Errorf("ListBalancesByGroup = %+v", groupEdges)
	}
	personalEdges, _ := s.ListBalancesByGroup(ctx, "")
	if len(personalEdges) != 1 || personalEdges[0].Currency != "USD" || personalEdges[0].GroupID != "" {
		t.Errorf("personal balances = %+v", personalEdges)
	}
	userEdges, _ := s.ListBalancesByUser(ctx, "B")
	if len(userEdges) != 2 {
		t.Errorf("ListBalancesByUser = %+v", userEdges)
	}

	if err := s.WithTx(ctx, func(tx storage.Tx) error {
		return tx.DeleteBalance(ctx, models.NewEdgeKey("A", "B", "INR", g.ID))
	}); err != nil {
		t.Fatalf("DeleteBalance failed: %v", err)
	}
	if edges, _ := s.ListBalancesByGroup(ctx, g.ID); len(edges) != 0 {
		t.Errorf("expected no group edges after delete, got %+v", edges)
	}
}

func testRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.PutBalance(ctx, models.Balance{FromUserID: "X", ToUserID: "Y", Currency: "EUR", Amount: 100}); err != nil {
			return err
		}
		if err := tx.CreateSettlement(ctx, &models.Settlement{FromUserID: "X", ToUserID: "Y", Currency: "EUR", Amount: 1, CreatedBy: "X"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to be returned, got %v", err)
	}

	if edges, _ := s.ListBalancesByUser(ctx, "X"); len(edges) != 0 {
		t.Errorf("rolled back edge is visible: %+v", edges)
	}
	if settlements, _ := s.ListSettlementsByUser(ctx, "X"); len(settlements) != 0 {
		t.Errorf("rolled back settlement is visible: %+v", settlements)
	}
}

func testSettlements(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := mustCreateGroup(t, s, "A", "B")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	records := []*models.Settlement{
		{GroupID: g.ID, FromUserID: "B", ToUserID: "A", Amount: 2000, Currency: "INR", CreatedBy: "B", CreatedAt: base, Note: "cash"},
		{FromUserID: "A", ToUserID: "C", Amount: 10, Currency: "USD", CreatedBy: "A", CreatedAt: base.Add(time.Hour)},
	}
	for _, st := range records {
		if err := s.WithTx(ctx, func(tx storage.Tx) error { return tx.CreateSettlement(ctx, st) }); err != nil {
			t.Fatalf("CreateSettlement failed: %v", err)
		}
		if st.ID == "" {
			t.Error("expected settlement ID to be generated")
		}
	}

	forA, _ := s.ListSettlementsByUser(ctx, "A")
	if len(forA) != 2 || forA[0].Currency != "USD" {
		t.Errorf("ListSettlementsByUser(A) = %+v, want newest first", forA)
	}
	forGroup, _ := s.ListSettlementsByGroup(ctx, g.ID)
	if len(forGroup) != 1 || forGroup[0].Note != "cash" || !forGroup[0].CreatedAt.Equal(base) {
		t.Errorf("ListSettlementsByGroup = %+v", forGroup)
	}
}
