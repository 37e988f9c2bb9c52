package rpc

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts on the wire are decimals in major units of their currency, encoded as JSON
// strings. Requests also accept JSON numbers.

// Participant is one user taking part in an expense. Exactly one of Amount,
// Percentage or Shares must be set, matching the expense's split type; none for EQUAL.
type Participant struct {
	UserID     string           `json:"userId" validate:"required"`
	Amount     *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,nonnegative_decimal"`
	Percentage *decimal.Decimal `json:"percentage,omitempty" validate:"omitempty,positive_decimal"`
	Shares     *int64           `json:"shares,omitempty" validate:"omitempty,gte=1"`
}

type CreateExpenseRequest struct {
	Description  string          `json:"description" validate:"max=255"`
	Category     string          `json:"category,omitempty"`
	Amount       decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Currency     string          `json:"currency" validate:"required,len=3"`
	PaidBy       string          `json:"paidBy" validate:"required"`
	GroupID      string          `json:"groupId,omitempty"`
	SplitType    string          `json:"splitType" validate:"required,oneof=EQUAL EXACT PERCENTAGE SHARES equal exact percentage shares"`
	Participants []Participant   `json:"participants" validate:"dive"`
	ExpenseDate  *time.Time      `json:"expenseDate,omitempty"`
}

type UpdateExpenseRequest struct {
	ExpenseID string               `json:"expenseId" validate:"required"`
	Expense   CreateExpenseRequest `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expenseId" validate:"required"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId" validate:"required"`
}

type DeleteExpenseResponse struct{}

type ListGroupExpensesRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type ListPersonalExpensesRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type Split struct {
	UserID     string          `json:"userId"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage string          `json:"percentage,omitempty"`
	Shares     int64           `json:"shares,omitempty"`
}

type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PaidBy      string          `json:"paidBy"`
	GroupID     string          `json:"groupId,omitempty"`
	SplitType   string          `json:"splitType"`
	Splits      []Split         `json:"splits"`
	ExpenseDate time.Time       `json:"expenseDate"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type GetExpenseSplitsResponse struct {
	Splits []Split `json:"splits"`
}

// Balance is a directed edge: FromUserID owes ToUserID Amount.
type Balance struct {
	FromUserID string          `json:"fromUserId"`
	ToUserID   string          `json:"toUserId"`
	GroupID    string          `json:"groupId,omitempty"`
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type GetUserBalancesRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type BalancesResponse struct {
	Balances []Balance `json:"balances"`
}

type GetNetBalanceRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type NetBalanceResponse struct {
	UserID string `json:"userId"`
	// Net maps currency to a signed decimal string; positive means the user is owed.
	Net map[string]string `json:"net"`
}

// Payment is a suggested transfer that would clear debt.
type Payment struct {
	FromUserID string          `json:"fromUserId"`
	ToUserID   string          `json:"toUserId"`
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
}

type GetSuggestedSettlementsRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type SuggestedSettlementsResponse struct {
	Payments []Payment `json:"payments"`
}

type MemberPosition struct {
	UserID   string          `json:"userId"`
	Currency string          `json:"currency"`
	Net      decimal.Decimal `json:"net"`
}

type GetGroupSummaryRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GroupSummaryResponse struct {
	Group       *Group           `json:"group"`
	Balances    []Balance        `json:"balances"`
	Members     []MemberPosition `json:"members"`
	Suggested   []Payment        `json:"suggested"`
	Settlements []*Settlement    `json:"settlements"`
}

type CreateSettlementRequest struct {
	FromUserID string          `json:"fromUserId" validate:"required"`
	ToUserID   string          `json:"toUserId" validate:"required,nefield=FromUserID"`
	Amount     decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Currency   string          `json:"currency" validate:"required,len=3"`
	GroupID    string          `json:"groupId,omitempty"`
	Note       string          `json:"note,omitempty" validate:"max=500"`
}

type Settlement struct {
	ID         string          `json:"id"`
	GroupID    string          `json:"groupId,omitempty"`
	FromUserID string          `json:"fromUserId"`
	ToUserID   string          `json:"toUserId"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Note       string          `json:"note,omitempty"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type SettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type ListUserSettlementsRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type ListGroupSettlementsRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type SettlementsResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AdminID   string    `json:"adminId"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	// Members are added besides the caller, who becomes admin.
	Members []string `json:"members" validate:"dive,required"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type AddMembersRequest struct {
	GroupID string   `json:"groupId" validate:"required"`
	UserIDs []string `json:"userIds" validate:"min=1,dive,required"`
}

type RemoveMemberRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
}
