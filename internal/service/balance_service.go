package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/rpc"
)

// BalanceService implements the Connect BalanceService: balance reads and settlements.
type BalanceService struct {
	base
	engine  *ledger.Engine
	queries *ledger.Queries
}

// NewBalanceService creates a BalanceService over the ledger engine.
func NewBalanceService(engine *ledger.Engine, logger *slog.Logger) *BalanceService {
	return &BalanceService{base: base{logger: logger}, engine: engine, queries: engine.Queries()}
}

// GetUserBalances lists every edge involving the caller.
func (s *BalanceService) GetUserBalances(ctx context.Context, req *connect.Request[rpc.GetUserBalancesRequest]) (*connect.Response[rpc.BalancesResponse], error) {
	edges, err := s.queries.UserBalances(ctx, session(ctx), req.Msg.UserID)
	if err != nil {
		return nil, s.fail(ctx, "GetUserBalances", err)
	}
	return connect.NewResponse(&rpc.BalancesResponse{Balances: toBalances(edges)}), nil
}

// GetNetBalance returns the caller's signed total per currency.
func (s *BalanceService) GetNetBalance(ctx context.Context, req *connect.Request[rpc.GetNetBalanceRequest]) (*connect.Response[rpc.NetBalanceResponse], error) {
	net, err := s.queries.NetBalance(ctx, session(ctx), req.Msg.UserID)
	if err != nil {
		return nil, s.fail(ctx, "GetNetBalance", err)
	}
	out := make(map[string]string, len(net))
	for currency, minor := range net {
		out[currency] = models.FormatMinor(minor, currency)
	}
	return connect.NewResponse(&rpc.NetBalanceResponse{UserID: req.Msg.UserID, Net: out}), nil
}

// GetGroupBalances lists the edges within a group.
func (s *BalanceService) GetGroupBalances(ctx context.Context, req *connect.Request[rpc.GetGroupBalancesRequest]) (*connect.Response[rpc.BalancesResponse], error) {
	edges, err := s.queries.GroupBalances(ctx, session(ctx), req.Msg.GroupID)
	if err != nil {
		return nil, s.fail(ctx, "GetGroupBalances", err)
	}
	return connect.NewResponse(&rpc.BalancesResponse{Balances: toBalances(edges)}), nil
}

// GetSuggestedSettlements proposes payments that would clear a group.
func (s *BalanceService) GetSuggestedSettlements(ctx context.Context, req *connect.Request[rpc.GetSuggestedSettlementsRequest]) (*connect.Response[rpc.SuggestedSettlementsResponse], error) {
	payments, err := s.queries.SuggestedSettlements(ctx, session(ctx), req.Msg.GroupID)
	if err != nil {
		return nil, s.fail(ctx, "GetSuggestedSettlements", err)
	}
	return connect.NewResponse(&rpc.SuggestedSettlementsResponse{Payments: toPayments(payments)}), nil
}

// GetGroupSummary returns a group's balances, positions, suggestions and settlements.
func (s *BalanceService) GetGroupSummary(ctx context.Context, req *connect.Request[rpc.GetGroupSummaryRequest]) (*connect.Response[rpc.GroupSummaryResponse], error) {
	summary, err := s.queries.GroupSummary(ctx, session(ctx), req.Msg.GroupID)
	if err != nil {
		return nil, s.fail(ctx, "GetGroupSummary", err)
	}
	return connect.NewResponse(&rpc.GroupSummaryResponse{
		Group:       toGroup(summary.Group),
		Balances:    toBalances(summary.Balances),
		Members:     toPositions(summary.Members),
		Suggested:   toPayments(summary.Suggested),
		Settlements: toSettlements(summary.Settlements),
	}), nil
}

// CreateSettlement records a payment against an existing debt.
func (s *BalanceService) CreateSettlement(ctx context.Context, req *connect.Request[rpc.CreateSettlementRequest]) (*connect.Response[rpc.SettlementResponse], error) {
	s.logger.InfoContext(ctx, "CreateSettlement request received",
		"from", req.Msg.FromUserID,
		"to", req.Msg.ToUserID,
		"group_id", req.Msg.GroupID,
		"currency", req.Msg.Currency,
	)

	currency, err := models.NormalizeCurrency(req.Msg.Currency)
	if err != nil {
		return nil, s.fail(ctx, "CreateSettlement", validation("currency", err))
	}
	amount, err := toMinor("amount", req.Msg.Amount, currency)
	if err != nil {
		return nil, s.fail(ctx, "CreateSettlement", err)
	}

	settlement, err := s.engine.CreateSettlement(ctx, session(ctx), ledger.SettlementInput{
		FromUserID: req.Msg.FromUserID,
		ToUserID:   req.Msg.ToUserID,
		Amount:     amount,
		Currency:   currency,
		GroupID:    req.Msg.GroupID,
		Note:       req.Msg.Note,
	})
	if err != nil {
		return nil, s.fail(ctx, "CreateSettlement", err)
	}

	s.logger.InfoContext(ctx, "Settlement recorded", "settlement_id", settlement.ID)
	return connect.NewResponse(&rpc.SettlementResponse{Settlement: toSettlement(settlement)}), nil
}

// ListUserSettlements lists settlements paid or received by the caller.
func (s *BalanceService) ListUserSettlements(ctx context.Context, req *connect.Request[rpc.ListUserSettlementsRequest]) (*connect.Response[rpc.SettlementsResponse], error) {
	list, err := s.queries.UserSettlements(ctx, session(ctx), req.Msg.UserID)
	if err != nil {
		return nil, s.fail(ctx, "ListUserSettlements", err)
	}
	return connect.NewResponse(&rpc.SettlementsResponse{Settlements: toSettlements(list)}), nil
}

// ListGroupSettlements lists a group's settlements.
func (s *BalanceService) ListGroupSettlements(ctx context.Context, req *connect.Request[rpc.ListGroupSettlementsRequest]) (*connect.Response[rpc.SettlementsResponse], error) {
	list, err := s.queries.GroupSettlements(ctx, session(ctx), req.Msg.GroupID)
	if err != nil {
		return nil, s.fail(ctx, "ListGroupSettlements", err)
	}
	return connect.NewResponse(&rpc.SettlementsResponse{Settlements: toSettlements(list)}), nil
}
