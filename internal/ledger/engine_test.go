package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/lock"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

var (
	alice = Session{UserID: "alice"}
	bob   = Session{UserID: "bob"}
	carol = Session{UserID: "carol"}
	dave  = Session{UserID: "dave"}
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Type
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// recordingCache is an in-process NetCache that remembers invalidations.
type recordingCache struct {
	mu          sync.Mutex
	values      map[string]map[string]int64
	invalidated []string
	hits        int
	fail        bool
	// onInvalidate, if set, runs at the start of every Invalidate.
	onInvalidate func()
}

func newRecordingCache() *recordingCache {
	return &recordingCache{values: make(map[string]map[string]int64)}
}

func (c *recordingCache) Lookup(_ context.Context, userID string) (map[string]int64, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[userID]; ok {
		c.hits++
		return v, "", true
	}
	return nil, "t", false
}

func (c *recordingCache) Store(_ context.Context, userID, _ string, net map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[userID] = net
}

func (c *recordingCache) Invalidate(_ context.Context, userIDs []string) error {
	if c.onInvalidate != nil {
		c.onInvalidate()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache unavailable")
	}
	for _, id := range userIDs {
		delete(c.values, id)
	}
	c.invalidated = append(c.invalidated, userIDs...)
	return nil
}

// flakyLocker reports contention for the first n acquisitions, or forever if n < 0.
type flakyLocker struct {
	next  lock.Locker
	n     int32
	calls atomic.Int32
}

func (l *flakyLocker) Acquire(ctx context.Context, keys []string) (lock.Release, error) {
	call := l.calls.Add(1)
	if l.n < 0 || call <= l.n {
		return nil, apperr.ErrConcurrencyConflict
	}
	return l.next.Acquire(ctx, keys)
}

// heldLocker counts the lock sets currently held through it.
type heldLocker struct {
	next lock.Locker
	held atomic.Int32
}

func (l *heldLocker) Acquire(ctx context.Context, keys []string) (lock.Release, error) {
	release, err := l.next.Acquire(ctx, keys)
	if err != nil {
		return nil, err
	}
	l.held.Add(1)
	return func() {
		l.held.Add(-1)
		release()
	}, nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	err := store.CreateGroup(context.Background(), &models.Group{
		ID:      "trip",
		Name:    "Goa Trip",
		AdminID: "alice",
		Members: []string{"alice", "bob", "carol"},
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return NewEngine(store, lock.NewLocal(time.Second), opts...), store
}

// edges renders the balances of a scope as "from>to:currency" -> amount.
func edges(t *testing.T, store storage.Reader, groupID string) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	var list []models.Balance
	var err error
	if groupID == "" {
		for _, u := range []string{"alice", "bob", "carol", "dave"} {
			var mine []models.Balance
			mine, err = store.ListBalancesByUser(ctx, u)
			for _, b := range mine {
				if b.GroupID == "" {
					list = append(list, b)
				}
			}
		}
	} else {
		list, err = store.ListBalancesByGroup(ctx, groupID)
	}
	if err != nil {
		t.Fatalf("listing balances failed: %v", err)
	}
	out := make(map[string]int64)
	for _, b := range list {
		if b.Amount <= 0 {
			t.Errorf("stored non-positive balance %+v", b)
		}
		out[fmt.Sprintf("%s>%s:%s", b.FromUserID, b.ToUserID, b.Currency)] = b.Amount
	}
	return out
}

func assertEdges(t *testing.T, got, want map[string]int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected edges %v, got %v", want, got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("expected edges %v, got %v", want, got)
		}
	}
}

// expectedEdges renders the merged ledger effect of expenses the way edges does.
func expectedEdges(expenses []*models.Expense) map[string]int64 {
	book := make(Book)
	for _, e := range expenses {
		book.Merge(ExpenseDeltas(e), 1)
	}
	out := make(map[string]int64)
	for k, v := range book {
		switch {
		case v > 0:
			out[fmt.Sprintf("%s>%s:%s", k.UserA, k.UserB, k.Currency)] = v
		case v < 0:
			out[fmt.Sprintf("%s>%s:%s", k.UserB, k.UserA, k.Currency)] = -v
		}
	}
	return out
}

func equalInput(amount int64, paidBy string, ids ...string) ExpenseInput {
	in := ExpenseInput{
		Description: "Dinner",
		Amount:      amount,
		Currency:    "INR",
		PaidBy:      paidBy,
		GroupID:     "trip",
		SplitType:   models.SplitEqual,
	}
	for _, id := range ids {
		in.Participants = append(in.Participants, models.Participant{UserID: id})
	}
	return in
}

func TestEngine_DinnerThenSettle(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	engine, store := newTestEngine(t, WithPublisher(pub))

	expense, err := engine.CreateExpense(ctx, alice, equalInput(9000, "alice", "alice", "bob", "carol"))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if expense.SplitTotal() != 9000 {
		t.Errorf("expected splits to sum to 9000, got %d", expense.SplitTotal())
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{
		"bob>alice:INR":   3000,
		"carol>alice:INR": 3000,
	})

	settlement, err := engine.CreateSettlement(ctx, bob, SettlementInput{
		FromUserID: "bob", ToUserID: "alice", Amount: 3000, Currency: "inr", GroupID: "trip",
	})
	if err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}
	if settlement.Currency != "INR" || settlement.CreatedBy != "bob" {
		t.Errorf("unexpected settlement %+v", settlement)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{"carol>alice:INR": 3000})

	net, err := engine.Queries().NetBalance(ctx, alice, "alice")
	if err != nil {
		t.Fatalf("NetBalance failed: %v", err)
	}
	if net["INR"] != 3000 {
		t.Errorf("expected alice to be owed 3000, got %v", net)
	}

	want := []events.Type{events.ExpenseCreated, events.SettlementRecorded}
	if got := pub.types(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected events %v, got %v", want, got)
	}
}

func TestEngine_EqualGroupExpenseDefaultsToMembers(t *testing.T) {
	engine, _ := newTestEngine(t)
	in := equalInput(1000, "bob")
	in.Description = ""

	expense, err := engine.CreateExpense(context.Background(), bob, in)
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if len(expense.Splits) != 3 {
		t.Fatalf("expected 3 splits, got %+v", expense.Splits)
	}
	if expense.Description != "Split with alice, bob, carol" {
		t.Errorf("unexpected generated description %q", expense.Description)
	}
	if expense.Category != models.CategoryOther {
		t.Errorf("expected default category, got %q", expense.Category)
	}
}

func TestEngine_Settlements(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	if _, err := engine.CreateExpense(ctx, alice, equalInput(10000, "alice", "alice", "bob")); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	settle := func(s Session, from, to string, amount int64) error {
		_, err := engine.CreateSettlement(ctx, s, SettlementInput{
			FromUserID: from, ToUserID: to, Amount: amount, Currency: "INR", GroupID: "trip",
		})
		return err
	}

	var excess *apperr.ExcessSettlementError
	if err := settle(bob, "bob", "alice", 6000); !errors.As(err, &excess) {
		t.Fatalf("expected ExcessSettlementError, got %v", err)
	}
	if excess.Outstanding != 5000 || excess.Requested != 6000 {
		t.Errorf("unexpected excess error %+v", excess)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{"bob>alice:INR": 5000})

	var nf *apperr.NotFoundError
	if err := settle(alice, "alice", "bob", 100); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError for reversed direction, got %v", err)
	}
	if err := settle(bob, "bob", "carol", 100); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError for missing edge, got %v", err)
	}

	if err := settle(bob, "bob", "alice", 2000); err != nil {
		t.Fatalf("partial settlement failed: %v", err)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{"bob>alice:INR": 3000})

	if err := settle(alice, "bob", "alice", 3000); err != nil {
		t.Fatalf("final settlement failed: %v", err)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{})

	history, err := store.ListSettlementsByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListSettlementsByGroup failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected only successful settlements to be recorded, got %d", len(history))
	}
}

func TestEngine_SettlementValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		session Session
		in      SettlementInput
		check   func(error) bool
	}{
		{"self", bob, SettlementInput{FromUserID: "bob", ToUserID: "bob", Amount: 1, Currency: "INR"}, isValidation},
		{"zero amount", bob, SettlementInput{FromUserID: "bob", ToUserID: "alice", Currency: "INR"}, isValidation},
		{"bad currency", bob, SettlementInput{FromUserID: "bob", ToUserID: "alice", Amount: 1, Currency: "RUPEES"}, isValidation},
		{"third party", carol, SettlementInput{FromUserID: "bob", ToUserID: "alice", Amount: 1, Currency: "INR"}, isPermission},
		{"unknown group", bob, SettlementInput{FromUserID: "bob", ToUserID: "alice", Amount: 1, Currency: "INR", GroupID: "nope"}, isNotFound},
		{"anonymous", Session{}, SettlementInput{FromUserID: "bob", ToUserID: "alice", Amount: 1, Currency: "INR"}, isPermission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CreateSettlement(ctx, tt.session, tt.in)
			if !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestEngine_DeleteRestoresBalances(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	first, err := engine.CreateExpense(ctx, alice, equalInput(3000, "alice", "alice", "bob", "carol"))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	before := edges(t, store, "trip")

	second, err := engine.CreateExpense(ctx, bob, equalInput(5001, "bob", "alice", "bob", "carol"))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if err := engine.DeleteExpense(ctx, bob, second.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	assertEdges(t, edges(t, store, "trip"), before)

	if err := engine.DeleteExpense(ctx, alice, first.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{})

	var nf *apperr.NotFoundError
	if err := engine.DeleteExpense(ctx, alice, first.ID); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError on second delete, got %v", err)
	}
}

func TestEngine_UpdateReplacesEffect(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	expense, err := engine.CreateExpense(ctx, alice, equalInput(9000, "alice", "alice", "bob", "carol"))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	in := equalInput(6000, "alice", "alice", "bob")
	in.Description = "Lunch"
	updated, err := engine.UpdateExpense(ctx, alice, expense.ID, in)
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if updated.ID != expense.ID || !updated.CreatedAt.Equal(expense.CreatedAt) {
		t.Errorf("update changed identity: %+v", updated)
	}
	if !updated.UpdatedAt.After(expense.UpdatedAt) {
		t.Errorf("expected UpdatedAt to advance past %v, got %v", expense.UpdatedAt, updated.UpdatedAt)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{"bob>alice:INR": 3000})

	stored, err := store.GetExpense(ctx, expense.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if stored.Description != "Lunch" || stored.Amount != 6000 || len(stored.Splits) != 2 {
		t.Errorf("unexpected stored expense %+v", stored)
	}

	// A rejected update leaves the old effect in place.
	bad := equalInput(6000, "alice", "alice", "dave")
	var ve *apperr.ValidationError
	if _, err := engine.UpdateExpense(ctx, alice, expense.ID, bad); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.ExpenseID != expense.ID || ve.ParticipantID != "dave" {
		t.Errorf("unexpected validation error %+v", ve)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{"bob>alice:INR": 3000})
}

func TestEngine_OppositeDebtsNet(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	if _, err := engine.CreateExpense(ctx, alice, equalInput(1000, "alice", "alice", "bob")); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if _, err := engine.CreateExpense(ctx, bob, equalInput(3000, "bob", "alice", "bob")); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{"alice>bob:INR": 1000})

	usd := equalInput(1000, "alice", "alice", "bob")
	usd.Currency = "USD"
	if _, err := engine.CreateExpense(ctx, alice, usd); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	assertEdges(t, edges(t, store, "trip"), map[string]int64{
		"alice>bob:INR": 1000,
		"bob>alice:USD": 500,
	})
}

func TestEngine_PersonalExpense(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	in := equalInput(2000, "dave", "dave", "carol")
	in.GroupID = ""
	if _, err := engine.CreateExpense(ctx, dave, in); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	assertEdges(t, edges(t, store, ""), map[string]int64{"carol>dave:INR": 1000})
	assertEdges(t, edges(t, store, "trip"), map[string]int64{})

	if _, err := engine.CreateExpense(ctx, alice, in); !isPermission(err) {
		t.Errorf("expected PermissionError for an uninvolved caller, got %v", err)
	}
}

func TestEngine_Permissions(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	if _, err := engine.CreateExpense(ctx, dave, equalInput(100, "alice", "alice", "bob")); !isPermission(err) {
		t.Errorf("expected non-member create to be denied, got %v", err)
	}
	if _, err := engine.CreateExpense(ctx, Session{}, equalInput(100, "alice", "alice", "bob")); !isPermission(err) {
		t.Errorf("expected anonymous create to be denied, got %v", err)
	}

	expense, err := engine.CreateExpense(ctx, bob, equalInput(900, "bob", "alice", "bob", "carol"))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if _, err := engine.UpdateExpense(ctx, carol, expense.ID, equalInput(600, "bob", "bob", "carol")); !isPermission(err) {
		t.Errorf("expected non-payer update to be denied, got %v", err)
	}
	if err := engine.DeleteExpense(ctx, carol, expense.ID); !isPermission(err) {
		t.Errorf("expected non-payer delete to be denied, got %v", err)
	}
	if len(edges(t, store, "trip")) != 2 {
		t.Fatalf("denied mutations changed balances: %v", edges(t, store, "trip"))
	}

	// The group admin may delete any group expense.
	if err := engine.DeleteExpense(ctx, alice, expense.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}

func TestEngine_RejectedExpenseLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	engine, store := newTestEngine(t, WithPublisher(pub))

	tests := []struct {
		name string
		in   ExpenseInput
	}{
		{"zero amount", equalInput(0, "alice", "alice", "bob")},
		{"bad currency", func() ExpenseInput { in := equalInput(100, "alice", "bob"); in.Currency = "XX"; return in }()},
		{"bad category", func() ExpenseInput { in := equalInput(100, "alice", "bob"); in.Category = "YACHTS"; return in }()},
		{"payer outside group", equalInput(100, "dave", "alice", "bob")},
		{"participant outside group", equalInput(100, "alice", "alice", "dave")},
		{"missing split type", func() ExpenseInput { in := equalInput(100, "alice", "bob"); in.SplitType = ""; return in }()},
		{"exact mismatch", func() ExpenseInput {
			in := equalInput(100, "alice")
			in.SplitType = models.SplitExact
			share, _ := models.NewExactShare(60)
			in.Participants = []models.Participant{{UserID: "alice", Share: share}, {UserID: "bob", Share: share}}
			return in
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := engine.CreateExpense(ctx, alice, tt.in); !isValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	assertEdges(t, edges(t, store, "trip"), map[string]int64{})
	if got := pub.types(); len(got) != 0 {
		t.Errorf("rejected mutations published events: %v", got)
	}
}

func TestEngine_ConcurrentExpensesCommute(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	members := []string{"alice", "bob", "carol"}

	const workers = 24
	created := make([]*models.Expense, workers)
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payer := members[rand.IntN(len(members))]
			in := equalInput(int64(100+rand.IntN(10000)), payer, members...)
			expense, err := engine.CreateExpense(ctx, Session{UserID: payer}, in)
			if err != nil {
				errs <- err
				return
			}
			created[i] = expense
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent CreateExpense failed: %v", err)
	}

	assertEdges(t, edges(t, store, "trip"), expectedEdges(created))
}

func TestEngine_ConcurrentMutationsOnSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	members := []string{"alice", "bob", "carol"}
	err = store.CreateGroup(ctx, &models.Group{ID: "trip", Name: "Goa Trip", AdminID: "alice", Members: members})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	engine := NewEngine(store, lock.NewLocal(5*time.Second), WithRetryPolicy(RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
	}))

	const seeded = 12
	seed := make([]*models.Expense, seeded)
	for i := range seeded {
		payer := members[i%len(members)]
		seed[i], err = engine.CreateExpense(ctx, Session{UserID: payer}, equalInput(int64(300+i*101), payer, members...))
		if err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
	}

	// Every third seeded expense is updated and every third deleted while new
	// expenses land on the same edges.
	var wg sync.WaitGroup
	errs := make(chan error, 2*seeded)
	run := func(f func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(); err != nil {
				errs <- err
			}
		}()
	}
	for i, e := range seed {
		owner := Session{UserID: e.PaidBy}
		switch i % 3 {
		case 0:
			run(func() error {
				_, err := engine.UpdateExpense(ctx, owner, e.ID, equalInput(2*e.Amount+1, e.PaidBy, members...))
				return err
			})
		case 1:
			run(func() error { return engine.DeleteExpense(ctx, owner, e.ID) })
		}
		payer := members[(i+1)%len(members)]
		run(func() error {
			_, err := engine.CreateExpense(ctx, Session{UserID: payer}, equalInput(int64(100+i*37), payer, members...))
			return err
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent mutation failed: %v", err)
	}

	surviving, err := store.ListExpensesByGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("ListExpensesByGroup failed: %v", err)
	}
	if want := 2*seeded - seeded/3; len(surviving) != want {
		t.Fatalf("expected %d surviving expenses, got %d", want, len(surviving))
	}
	assertEdges(t, edges(t, store, "trip"), expectedEdges(surviving))

	personal := equalInput(15000, "alice", "alice", "dave")
	personal.GroupID = ""
	if _, err := engine.CreateExpense(ctx, alice, personal); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	settle := func(amount int64) error {
		_, err := engine.CreateSettlement(ctx, dave, SettlementInput{
			FromUserID: "dave", ToUserID: "alice", Amount: amount, Currency: "INR",
		})
		return err
	}
	if err := settle(6000); err != nil {
		t.Fatalf("partial settlement failed: %v", err)
	}
	assertEdges(t, edges(t, store, ""), map[string]int64{"dave>alice:INR": 1500})

	var excess *apperr.ExcessSettlementError
	if err := settle(2000); !errors.As(err, &excess) {
		t.Fatalf("expected ExcessSettlementError, got %v", err)
	}
	if excess.Outstanding != 1500 || excess.Requested != 2000 {
		t.Errorf("unexpected excess error %+v", excess)
	}
	assertEdges(t, edges(t, store, ""), map[string]int64{"dave>alice:INR": 1500})
}

func TestEngine_RetriesContention(t *testing.T) {
	locker := &flakyLocker{next: lock.NewLocal(time.Second), n: 2}
	store := memory.New()
	engine := NewEngine(store, locker, WithRetryPolicy(RetryPolicy{MaxAttempts: 5}))

	in := equalInput(1000, "alice", "alice", "bob")
	in.GroupID = ""
	if _, err := engine.CreateExpense(context.Background(), alice, in); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := locker.calls.Load(); got != 3 {
		t.Errorf("expected 3 lock attempts, got %d", got)
	}
}

func TestEngine_RetryExhaustion(t *testing.T) {
	locker := &flakyLocker{n: -1}
	pub := &recordingPublisher{}
	store := memory.New()
	engine := NewEngine(store, locker, WithPublisher(pub), WithRetryPolicy(RetryPolicy{MaxAttempts: 3}))

	in := equalInput(1000, "alice", "alice", "bob")
	in.GroupID = ""
	_, err := engine.CreateExpense(context.Background(), alice, in)

	var conflict *apperr.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Attempts != 3 || len(conflict.Keys) != 1 {
		t.Errorf("unexpected conflict %+v", conflict)
	}
	if !apperr.IsConflict(err) {
		t.Error("expected ConflictError to match ErrConcurrencyConflict")
	}
	if got := locker.calls.Load(); got != 3 {
		t.Errorf("expected 3 lock attempts, got %d", got)
	}
	if expenses, _ := store.ListPersonalExpenses(context.Background(), "alice"); len(expenses) != 0 {
		t.Errorf("expected nothing stored, got %d expenses", len(expenses))
	}
	if got := pub.types(); len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestEngine_InvalidatesNetCache(t *testing.T) {
	ctx := context.Background()
	cache := newRecordingCache()
	engine, _ := newTestEngine(t, WithNetCache(cache))
	queries := engine.Queries()

	if _, err := engine.CreateExpense(ctx, alice, equalInput(1000, "alice", "alice", "bob")); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	for range 2 {
		net, err := queries.NetBalance(ctx, bob, "bob")
		if err != nil {
			t.Fatalf("NetBalance failed: %v", err)
		}
		if net["INR"] != -500 {
			t.Fatalf("expected bob to owe 500, got %v", net)
		}
	}
	if cache.hits != 1 {
		t.Errorf("expected the second read to hit the cache, got %d hits", cache.hits)
	}

	if _, err := engine.CreateSettlement(ctx, bob, SettlementInput{
		FromUserID: "bob", ToUserID: "alice", Amount: 500, Currency: "INR", GroupID: "trip",
	}); err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}
	net, err := queries.NetBalance(ctx, bob, "bob")
	if err != nil {
		t.Fatalf("NetBalance failed: %v", err)
	}
	if net["INR"] != 0 {
		t.Errorf("expected a fresh zero balance after settling, got %v", net)
	}
}

func TestEngine_InvalidatesNetCacheUnderLock(t *testing.T) {
	ctx := context.Background()
	cache := newRecordingCache()
	locker := &heldLocker{next: lock.NewLocal(time.Second)}
	store := memory.New()
	engine := NewEngine(store, locker, WithNetCache(cache))

	var heldDuring []int32
	cache.onInvalidate = func() { heldDuring = append(heldDuring, locker.held.Load()) }

	in := equalInput(1000, "alice", "alice", "bob")
	in.GroupID = ""
	if _, err := engine.CreateExpense(ctx, alice, in); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if len(heldDuring) != 1 || heldDuring[0] != 1 {
		t.Errorf("expected invalidation while the edge lock is held, got %v", heldDuring)
	}
	if got := locker.held.Load(); got != 0 {
		t.Errorf("expected every lock released, %d still held", got)
	}
}

func TestEngine_FailedInvalidationBypassesCache(t *testing.T) {
	ctx := context.Background()
	cache := newRecordingCache()
	engine, _ := newTestEngine(t, WithNetCache(cache))
	queries := engine.Queries()

	netOfBob := func() int64 {
		t.Helper()
		net, err := queries.NetBalance(ctx, bob, "bob")
		if err != nil {
			t.Fatalf("NetBalance failed: %v", err)
		}
		return net["INR"]
	}
	create := func() {
		t.Helper()
		if _, err := engine.CreateExpense(ctx, alice, equalInput(1000, "alice", "alice", "bob")); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
	}

	create()
	netOfBob()
	if got := netOfBob(); got != -500 || cache.hits != 1 {
		t.Fatalf("expected a cached -500, got %d with %d hits", got, cache.hits)
	}

	cache.fail = true
	create()
	for range 2 {
		if got := netOfBob(); got != -1000 {
			t.Fatalf("expected the store's -1000 after a failed invalidation, got %d", got)
		}
	}
	if cache.hits != 1 {
		t.Errorf("expected no cache hits while bob is stale, got %d", cache.hits)
	}

	cache.fail = false
	create()
	if got := netOfBob(); got != -1500 {
		t.Fatalf("expected -1500, got %d", got)
	}
	if got := netOfBob(); got != -1500 || cache.hits != 2 {
		t.Errorf("expected caching to resume after a successful invalidation, got %d with %d hits", got, cache.hits)
	}
}

func isValidation(err error) bool {
	var ve *apperr.ValidationError
	return errors.As(err, &ve)
}

func isPermission(err error) bool {
	var pe *apperr.PermissionError
	return errors.As(err, &pe)
}
