// Package rest exposes the ledger services as plain JSON over HTTP. Each route binds
// path parameters and body into the same request messages the Connect services use,
// so validation, permissions and error semantics are shared.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/pkg/rpc"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Services are the handlers the gateway delegates to.
type Services struct {
	Expenses rpc.ExpenseServiceHandler
	Balances rpc.BalanceServiceHandler
	Groups   rpc.GroupServiceHandler
}

// NewRouter mounts every /api route behind bearer authentication.
func NewRouter(svc Services, jwtManager *auth.JWTManager, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuthHTTP(jwtManager))

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", handle(logger, svc.Expenses.CreateExpense, http.StatusCreated, bindBody[rpc.CreateExpenseRequest]))
			r.Get("/group/{groupId}", handle(logger, svc.Expenses.ListGroupExpenses, http.StatusOK,
				func(r *http.Request, m *rpc.ListGroupExpensesRequest) error {
					m.GroupID = chi.URLParam(r, "groupId")
					return nil
				}))
			r.Get("/personal/{userId}", handle(logger, svc.Expenses.ListPersonalExpenses, http.StatusOK,
				func(r *http.Request, m *rpc.ListPersonalExpensesRequest) error {
					m.UserID = chi.URLParam(r, "userId")
					return nil
				}))
			r.Get("/{id}", handle(logger, svc.Expenses.GetExpense, http.StatusOK, bindExpenseID))
			r.Get("/{id}/splits", handle(logger, svc.Expenses.GetExpenseSplits, http.StatusOK, bindExpenseID))
			r.Put("/{id}", handle(logger, svc.Expenses.UpdateExpense, http.StatusOK,
				func(r *http.Request, m *rpc.UpdateExpenseRequest) error {
					m.ExpenseID = chi.URLParam(r, "id")
					return decodeBody(r, &m.Expense)
				}))
			r.Delete("/{id}", handle(logger, svc.Expenses.DeleteExpense, http.StatusOK,
				func(r *http.Request, m *rpc.DeleteExpenseRequest) error {
					m.ExpenseID = chi.URLParam(r, "id")
					return nil
				}))
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/user/{userId}", handle(logger, svc.Balances.GetUserBalances, http.StatusOK,
				func(r *http.Request, m *rpc.GetUserBalancesRequest) error {
					m.UserID = chi.URLParam(r, "userId")
					return nil
				}))
			r.Get("/user/{userId}/net", handle(logger, svc.Balances.GetNetBalance, http.StatusOK,
				func(r *http.Request, m *rpc.GetNetBalanceRequest) error {
					m.UserID = chi.URLParam(r, "userId")
					return nil
				}))
			r.Get("/group/{groupId}", handle(logger, svc.Balances.GetGroupBalances, http.StatusOK,
				func(r *http.Request, m *rpc.GetGroupBalancesRequest) error {
					m.GroupID = chi.URLParam(r, "groupId")
					return nil
				}))
			r.Get("/group/{groupId}/simplified", handle(logger, svc.Balances.GetSuggestedSettlements, http.StatusOK,
				func(r *http.Request, m *rpc.GetSuggestedSettlementsRequest) error {
					m.GroupID = chi.URLParam(r, "groupId")
					return nil
				}))
			r.Get("/group/{groupId}/summary", handle(logger, svc.Balances.GetGroupSummary, http.StatusOK,
				func(r *http.Request, m *rpc.GetGroupSummaryRequest) error {
					m.GroupID = chi.URLParam(r, "groupId")
					return nil
				}))
			r.Post("/settle", handle(logger, svc.Balances.CreateSettlement, http.StatusCreated, bindBody[rpc.CreateSettlementRequest]))
			r.Get("/settlements/user/{userId}", handle(logger, svc.Balances.ListUserSettlements, http.StatusOK,
				func(r *http.Request, m *rpc.ListUserSettlementsRequest) error {
					m.UserID = chi.URLParam(r, "userId")
					return nil
				}))
			r.Get("/settlements/group/{groupId}", handle(logger, svc.Balances.ListGroupSettlements, http.StatusOK,
				func(r *http.Request, m *rpc.ListGroupSettlementsRequest) error {
					m.GroupID = chi.URLParam(r, "groupId")
					return nil
				}))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", handle(logger, svc.Groups.ListGroups, http.StatusOK, bindNothing[rpc.ListGroupsRequest]))
			r.Post("/", handle(logger, svc.Groups.CreateGroup, http.StatusCreated, bindBody[rpc.CreateGroupRequest]))
			r.Get("/{id}", handle(logger, svc.Groups.GetGroup, http.StatusOK,
				func(r *http.Request, m *rpc.GetGroupRequest) error {
					m.GroupID = chi.URLParam(r, "id")
					return nil
				}))
			r.Post("/{id}/members", handle(logger, svc.Groups.AddMembers, http.StatusOK,
				func(r *http.Request, m *rpc.AddMembersRequest) error {
					if err := decodeBody(r, m); err != nil {
						return err
					}
					m.GroupID = chi.URLParam(r, "id")
					return nil
				}))
			r.Delete("/{id}/members/{userId}", handle(logger, svc.Groups.RemoveMember, http.StatusOK,
				func(r *http.Request, m *rpc.RemoveMemberRequest) error {
					m.GroupID = chi.URLParam(r, "id")
					m.UserID = chi.URLParam(r, "userId")
					return nil
				}))
		})
	})
	return r
}

// handle adapts a unary service method to an HTTP handler. bind fills the request
// message from the path and body.
func handle[Req, Res any](logger *slog.Logger, call func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), status int, bind func(*http.Request, *Req) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg := new(Req)
		if err := bind(r, msg); err != nil {
			writeError(w, logger, connect.NewError(connect.CodeInvalidArgument, err))
			return
		}
		if err := rpc.Validate(msg); err != nil {
			writeError(w, logger, connect.NewError(connect.CodeInvalidArgument, err))
			return
		}
		resp, err := call(r.Context(), connect.NewRequest(msg))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, status, resp.Msg)
	}
}

func bindBody[Req any](r *http.Request, m *Req) error { return decodeBody(r, m) }

func bindNothing[Req any](*http.Request, *Req) error { return nil }

func bindExpenseID(r *http.Request, m *rpc.GetExpenseRequest) error {
	m.ExpenseID = chi.URLParam(r, "id")
	return nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := connect.CodeOf(err)
	message := err.Error()
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		message = cerr.Message()
	}
	writeJSON(w, logger, statusOf(code), errorBody{Code: code.String(), Message: message})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

// statusOf maps a Connect code to the HTTP status the gateway answers with.
func statusOf(code connect.Code) int {
	switch code {
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeUnauthenticated:
		return http.StatusUnauthorized
	case connect.CodePermissionDenied:
		return http.StatusForbidden
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeFailedPrecondition, connect.CodeAborted, connect.CodeAlreadyExists:
		return http.StatusConflict
	case connect.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case connect.CodeUnavailable:
		return http.StatusServiceUnavailable
	case connect.CodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
