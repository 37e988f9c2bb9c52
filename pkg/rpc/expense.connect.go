package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ExpenseServiceName is the fully-qualified name of the ExpenseService service.
const ExpenseServiceName = "splitledger.v1.ExpenseService"

const (
	ExpenseServiceCreateExpenseProcedure        = "/splitledger.v1.ExpenseService/CreateExpense"
	ExpenseServiceGetExpenseProcedure           = "/splitledger.v1.ExpenseService/GetExpense"
	ExpenseServiceUpdateExpenseProcedure        = "/splitledger.v1.ExpenseService/UpdateExpense"
	ExpenseServiceDeleteExpenseProcedure        = "/splitledger.v1.ExpenseService/DeleteExpense"
	ExpenseServiceGetExpenseSplitsProcedure     = "/splitledger.v1.ExpenseService/GetExpenseSplits"
	ExpenseServiceListGroupExpensesProcedure    = "/splitledger.v1.ExpenseService/ListGroupExpenses"
	ExpenseServiceListPersonalExpensesProcedure = "/splitledger.v1.ExpenseService/ListPersonalExpenses"
)

// ExpenseServiceClient is a client for the splitledger.v1.ExpenseService service.
type ExpenseServiceClient interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	GetExpenseSplits(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseSplitsResponse], error)
	ListGroupExpenses(context.Context, *connect.Request[ListGroupExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	ListPersonalExpenses(context.Context, *connect.Request[ListPersonalExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
}

// NewExpenseServiceClient constructs a client for the splitledger.v1.ExpenseService
// service. baseURL is the server root, e.g. http://localhost:8080.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append(clientDefaults(), opts...)
	return &expenseServiceClient{
		createExpense:        connect.NewClient[CreateExpenseRequest, ExpenseResponse](httpClient, baseURL+ExpenseServiceCreateExpenseProcedure, opts...),
		getExpense:           connect.NewClient[GetExpenseRequest, ExpenseResponse](httpClient, baseURL+ExpenseServiceGetExpenseProcedure, opts...),
		updateExpense:        connect.NewClient[UpdateExpenseRequest, ExpenseResponse](httpClient, baseURL+ExpenseServiceUpdateExpenseProcedure, opts...),
		deleteExpense:        connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...),
		getExpenseSplits:     connect.NewClient[GetExpenseRequest, GetExpenseSplitsResponse](httpClient, baseURL+ExpenseServiceGetExpenseSplitsProcedure, opts...),
		listGroupExpenses:    connect.NewClient[ListGroupExpensesRequest, ListExpensesResponse](httpClient, baseURL+ExpenseServiceListGroupExpensesProcedure, opts...),
		listPersonalExpenses: connect.NewClient[ListPersonalExpensesRequest, ListExpensesResponse](httpClient, baseURL+ExpenseServiceListPersonalExpensesProcedure, opts...),
	}
}

type expenseServiceClient struct {
	createExpense        *connect.Client[CreateExpenseRequest, ExpenseResponse]
	getExpense           *connect.Client[GetExpenseRequest, ExpenseResponse]
	updateExpense        *connect.Client[UpdateExpenseRequest, ExpenseResponse]
	deleteExpense        *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	getExpenseSplits     *connect.Client[GetExpenseRequest, GetExpenseSplitsResponse]
	listGroupExpenses    *connect.Client[ListGroupExpensesRequest, ListExpensesResponse]
	listPersonalExpenses *connect.Client[ListPersonalExpensesRequest, ListExpensesResponse]
}

func (c *expenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[GetExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) GetExpenseSplits(ctx context.Context, req *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseSplitsResponse], error) {
	return c.getExpenseSplits.CallUnary(ctx, req)
}

func (c *expenseServiceClient) ListGroupExpenses(ctx context.Context, req *connect.Request[ListGroupExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listGroupExpenses.CallUnary(ctx, req)
}

func (c *expenseServiceClient) ListPersonalExpenses(ctx context.Context, req *connect.Request[ListPersonalExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listPersonalExpenses.CallUnary(ctx, req)
}

// ExpenseServiceHandler is implemented by the server side of splitledger.v1.ExpenseService.
type ExpenseServiceHandler interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[ExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	GetExpenseSplits(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseSplitsResponse], error)
	ListGroupExpenses(context.Context, *connect.Request[ListGroupExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	ListPersonalExpenses(context.Context, *connect.Request[ListPersonalExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler from the service implementation and
// returns the path on which to mount it.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(handlerDefaults(), opts...)
	handlers := map[string]*connect.Handler{
		ExpenseServiceCreateExpenseProcedure:        connect.NewUnaryHandler(ExpenseServiceCreateExpenseProcedure, svc.CreateExpense, opts...),
		ExpenseServiceGetExpenseProcedure:           connect.NewUnaryHandler(ExpenseServiceGetExpenseProcedure, svc.GetExpense, opts...),
		ExpenseServiceUpdateExpenseProcedure:        connect.NewUnaryHandler(ExpenseServiceUpdateExpenseProcedure, svc.UpdateExpense, opts...),
		ExpenseServiceDeleteExpenseProcedure:        connect.NewUnaryHandler(ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...),
		ExpenseServiceGetExpenseSplitsProcedure:     connect.NewUnaryHandler(ExpenseServiceGetExpenseSplitsProcedure, svc.GetExpenseSplits, opts...),
		ExpenseServiceListGroupExpensesProcedure:    connect.NewUnaryHandler(ExpenseServiceListGroupExpensesProcedure, svc.ListGroupExpenses, opts...),
		ExpenseServiceListPersonalExpensesProcedure: connect.NewUnaryHandler(ExpenseServiceListPersonalExpensesProcedure, svc.ListPersonalExpenses, opts...),
	}
	return "/" + ExpenseServiceName + "/", route(handlers)
}

// route dispatches on the exact procedure path.
func route(handlers map[string]*connect.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}
