package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// BalanceServiceName is the fully-qualified name of the BalanceService service.
const BalanceServiceName = "splitledger.v1.BalanceService"

const (
	BalanceServiceGetUserBalancesProcedure         = "/splitledger.v1.BalanceService/GetUserBalances"
	BalanceServiceGetNetBalanceProcedure           = "/splitledger.v1.BalanceService/GetNetBalance"
	BalanceServiceGetGroupBalancesProcedure        = "/splitledger.v1.BalanceService/GetGroupBalances"
	BalanceServiceGetSuggestedSettlementsProcedure = "/splitledger.v1.BalanceService/GetSuggestedSettlements"
	BalanceServiceGetGroupSummaryProcedure         = "/splitledger.v1.BalanceService/GetGroupSummary"
	BalanceServiceCreateSettlementProcedure        = "/splitledger.v1.BalanceService/CreateSettlement"
	BalanceServiceListUserSettlementsProcedure     = "/splitledger.v1.BalanceService/ListUserSettlements"
	BalanceServiceListGroupSettlementsProcedure    = "/splitledger.v1.BalanceService/ListGroupSettlements"
)

// BalanceServiceClient is a client for the splitledger.v1.BalanceService service.
type BalanceServiceClient interface {
	GetUserBalances(context.Context, *connect.Request[GetUserBalancesRequest]) (*connect.Response[BalancesResponse], error)
	GetNetBalance(context.Context, *connect.Request[GetNetBalanceRequest]) (*connect.Response[NetBalanceResponse], error)
	GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[BalancesResponse], error)
	GetSuggestedSettlements(context.Context, *connect.Request[GetSuggestedSettlementsRequest]) (*connect.Response[SuggestedSettlementsResponse], error)
	GetGroupSummary(context.Context, *connect.Request[GetGroupSummaryRequest]) (*connect.Response[GroupSummaryResponse], error)
	CreateSettlement(context.Context, *connect.Request[CreateSettlementRequest]) (*connect.Response[SettlementResponse], error)
	ListUserSettlements(context.Context, *connect.Request[ListUserSettlementsRequest]) (*connect.Response[SettlementsResponse], error)
	ListGroupSettlements(context.Context, *connect.Request[ListGroupSettlementsRequest]) (*connect.Response[SettlementsResponse], error)
}

// NewBalanceServiceClient constructs a client for the splitledger.v1.BalanceService service.
func NewBalanceServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) BalanceServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append(clientDefaults(), opts...)
	return &balanceServiceClient{
		getUserBalances:         connect.NewClient[GetUserBalancesRequest, BalancesResponse](httpClient, baseURL+BalanceServiceGetUserBalancesProcedure, opts...),
		getNetBalance:           connect.NewClient[GetNetBalanceRequest, NetBalanceResponse](httpClient, baseURL+BalanceServiceGetNetBalanceProcedure, opts...),
		getGroupBalances:        connect.NewClient[GetGroupBalancesRequest, BalancesResponse](httpClient, baseURL+BalanceServiceGetGroupBalancesProcedure, opts...),
		getSuggestedSettlements: connect.NewClient[GetSuggestedSettlementsRequest, SuggestedSettlementsResponse](httpClient, baseURL+BalanceServiceGetSuggestedSettlementsProcedure, opts...),
		getGroupSummary:         connect.NewClient[GetGroupSummaryRequest, GroupSummaryResponse](httpClient, baseURL+BalanceServiceGetGroupSummaryProcedure, opts...),
		createSettlement:        connect.NewClient[CreateSettlementRequest, SettlementResponse](httpClient, baseURL+BalanceServiceCreateSettlementProcedure, opts...),
		listUserSettlements:     connect.NewClient[ListUserSettlementsRequest, SettlementsResponse](httpClient, baseURL+BalanceServiceListUserSettlementsProcedure, opts...),
		listGroupSettlements:    connect.NewClient[ListGroupSettlementsRequest, SettlementsResponse](httpClient, baseURL+BalanceServiceListGroupSettlementsProcedure, opts...),
	}
}

type balanceServiceClient struct {
	getUserBalances         *connect.Client[GetUserBalancesRequest, BalancesResponse]
	getNetBalance           *connect.Client[GetNetBalanceRequest, NetBalanceResponse]
	getGroupBalances        *connect.Client[GetGroupBalancesRequest, BalancesResponse]
	getSuggestedSettlements *connect.Client[GetSuggestedSettlementsRequest, SuggestedSettlementsResponse]
	getGroupSummary         *connect.Client[GetGroupSummaryRequest, GroupSummaryResponse]
	createSettlement        *connect.Client[CreateSettlementRequest, SettlementResponse]
	listUserSettlements     *connect.Client[ListUserSettlementsRequest, SettlementsResponse]
	listGroupSettlements    *connect.Client[ListGroupSettlementsRequest, SettlementsResponse]
}

func (c *balanceServiceClient) GetUserBalances(ctx context.Context, req *connect.Request[GetUserBalancesRequest]) (*connect.Response[BalancesResponse], error) {
	return c.getUserBalances.CallUnary(ctx, req)
}

func (c *balanceServiceClient) GetNetBalance(ctx context.Context, req *connect.Request[GetNetBalanceRequest]) (*connect.Response[NetBalanceResponse], error) {
	return c.getNetBalance.CallUnary(ctx, req)
}

func (c *balanceServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[GetGroupBalancesRequest]) (*connect.Response[BalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}

func (c *balanceServiceClient) GetSuggestedSettlements(ctx context.Context, req *connect.Request[GetSuggestedSettlementsRequest]) (*connect.Response[SuggestedSettlementsResponse], error) {
	return c.getSuggestedSettlements.CallUnary(ctx, req)
}

func (c *balanceServiceClient) GetGroupSummary(ctx context.Context, req *connect.Request[GetGroupSummaryRequest]) (*connect.Response[GroupSummaryResponse], error) {
	return c.getGroupSummary.CallUnary(ctx, req)
}

func (c *balanceServiceClient) CreateSettlement(ctx context.Context, req *connect.Request[CreateSettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return c.createSettlement.CallUnary(ctx, req)
}

func (c *balanceServiceClient) ListUserSettlements(ctx context.Context, req *connect.Request[ListUserSettlementsRequest]) (*connect.Response[SettlementsResponse], error) {
	return c.listUserSettlements.CallUnary(ctx, req)
}

func (c *balanceServiceClient) ListGroupSettlements(ctx context.Context, req *connect.Request[ListGroupSettlementsRequest]) (*connect.Response[SettlementsResponse], error) {
	return c.listGroupSettlements.CallUnary(ctx, req)
}

// BalanceServiceHandler is implemented by the server side of splitledger.v1.BalanceService.
type BalanceServiceHandler interface {
	GetUserBalances(context.Context, *connect.Request[GetUserBalancesRequest]) (*connect.Response[BalancesResponse], error)
	GetNetBalance(context.Context, *connect.Request[GetNetBalanceRequest]) (*connect.Response[NetBalanceResponse], error)
	GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[BalancesResponse], error)
	GetSuggestedSettlements(context.Context, *connect.Request[GetSuggestedSettlementsRequest]) (*connect.Response[SuggestedSettlementsResponse], error)
	GetGroupSummary(context.Context, *connect.Request[GetGroupSummaryRequest]) (*connect.Response[GroupSummaryResponse], error)
	CreateSettlement(context.Context, *connect.Request[CreateSettlementRequest]) (*connect.Response[SettlementResponse], error)
	ListUserSettlements(context.Context, *connect.Request[ListUserSettlementsRequest]) (*connect.Response[SettlementsResponse], error)
	ListGroupSettlements(context.Context, *connect.Request[ListGroupSettlementsRequest]) (*connect.Response[SettlementsResponse], error)
}

// NewBalanceServiceHandler builds an HTTP handler from the service implementation and
// returns the path on which to mount it.
func NewBalanceServiceHandler(svc BalanceServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(handlerDefaults(), opts...)
	handlers := map[string]*connect.Handler{
		BalanceServiceGetUserBalancesProcedure:         connect.NewUnaryHandler(BalanceServiceGetUserBalancesProcedure, svc.GetUserBalances, opts...),
		BalanceServiceGetNetBalanceProcedure:           connect.NewUnaryHandler(BalanceServiceGetNetBalanceProcedure, svc.GetNetBalance, opts...),
		BalanceServiceGetGroupBalancesProcedure:        connect.NewUnaryHandler(BalanceServiceGetGroupBalancesProcedure, svc.GetGroupBalances, opts...),
		BalanceServiceGetSuggestedSettlementsProcedure: connect.NewUnaryHandler(BalanceServiceGetSuggestedSettlementsProcedure, svc.GetSuggestedSettlements, opts...),
		BalanceServiceGetGroupSummaryProcedure:         connect.NewUnaryHandler(BalanceServiceGetGroupSummaryProcedure, svc.GetGroupSummary, opts...),
		BalanceServiceCreateSettlementProcedure:        connect.NewUnaryHandler(BalanceServiceCreateSettlementProcedure, svc.CreateSettlement, opts...),
		BalanceServiceListUserSettlementsProcedure:     connect.NewUnaryHandler(BalanceServiceListUserSettlementsProcedure, svc.ListUserSettlements, opts...),
		BalanceServiceListGroupSettlementsProcedure:    connect.NewUnaryHandler(BalanceServiceListGroupSettlementsProcedure, svc.ListGroupSettlements, opts...),
	}
	return "/" + BalanceServiceName + "/", route(handlers)
}
