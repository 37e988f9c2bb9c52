package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return newTestStore(t) })
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "ledger.db")
	ctx := context.Background()

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.PutBalance(ctx, models.Balance{FromUserID: "B", ToUserID: "A", Currency: "INR", Amount: 5000})
	})
	if err != nil {
		t.Fatalf("PutBalance failed: %v", err)
	}
	store.Close()

	// Migrations must be a no-op on an up-to-date schema.
	store, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	edges, err := store.ListBalancesByUser(ctx, "A")
	if err != nil {
		t.Fatalf("ListBalancesByUser failed: %v", err)
	}
	if len(edges) != 1 || edges[0].Amount != 5000 {
		t.Errorf("edges after reopen = %+v", edges)
	}
}

func TestSQLiteStore_ExpenseRequiresExistingGroup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.CreateExpense(ctx, &models.Expense{
			Amount: 100, Currency: "USD", PaidBy: "A", GroupID: "no-such-group",
			SplitType: models.SplitEqual, CreatedBy: "A", Category: models.CategoryOther,
		})
	})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
	if apperr.IsConflict(err) {
		t.Errorf("constraint violation must not be reported as a conflict: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	if isBusy(errors.New("plain")) {
		t.Error("plain error reported as busy")
	}
	if isBusy(fmt.Errorf("wrapped: %w", apperr.ErrConcurrencyConflict)) {
		t.Error("non-sqlite error reported as busy")
	}
}
