package service

import (
	"context"
	"log/slog"
	"slices"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/rpc"
)

// GroupService implements the Connect GroupService. Groups only scope balances;
// membership changes never touch existing expenses or balances.
type GroupService struct {
	base
	store storage.GroupStore
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.GroupStore, logger *slog.Logger) *GroupService {
	return &GroupService{base: base{logger: logger}, store: store}
}

// CreateGroup creates a group administered by the caller.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[rpc.CreateGroupRequest]) (*connect.Response[rpc.GroupResponse], error) {
	caller := session(ctx).UserID
	s.logger.InfoContext(ctx, "CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
	)
	if caller == "" {
		return nil, s.fail(ctx, "CreateGroup", apperr.Permission("", "create", "group"))
	}

	group := &models.Group{
		Name:    req.Msg.Name,
		AdminID: caller,
		Members: append([]string{caller}, req.Msg.Members...),
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, s.fail(ctx, "CreateGroup", err)
	}
	created, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, s.fail(ctx, "CreateGroup", err)
	}

	s.logger.InfoContext(ctx, "Group created", "group_id", created.ID)
	return connect.NewResponse(&rpc.GroupResponse{Group: toGroup(created)}), nil
}

// GetGroup retrieves a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[rpc.GetGroupRequest]) (*connect.Response[rpc.GroupResponse], error) {
	group, err := s.memberGroup(ctx, req.Msg.GroupID, "read")
	if err != nil {
		return nil, s.fail(ctx, "GetGroup", err)
	}
	return connect.NewResponse(&rpc.GroupResponse{Group: toGroup(group)}), nil
}

// ListGroups lists the groups the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, _ *connect.Request[rpc.ListGroupsRequest]) (*connect.Response[rpc.ListGroupsResponse], error) {
	groups, err := s.store.ListGroupsByMember(ctx, session(ctx).UserID)
	if err != nil {
		return nil, s.fail(ctx, "ListGroups", err)
	}
	out := make([]*rpc.Group, len(groups))
	for i, g := range groups {
		out[i] = toGroup(g)
	}
	return connect.NewResponse(&rpc.ListGroupsResponse{Groups: out}), nil
}

// AddMembers adds users to a group. Any member may add members.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[rpc.AddMembersRequest]) (*connect.Response[rpc.GroupResponse], error) {
	s.logger.InfoContext(ctx, "AddMembers request received", "group_id", req.Msg.GroupID, "users", req.Msg.UserIDs)

	if _, err := s.memberGroup(ctx, req.Msg.GroupID, "add members to"); err != nil {
		return nil, s.fail(ctx, "AddMembers", err)
	}
	if err := s.store.AddGroupMembers(ctx, req.Msg.GroupID, req.Msg.UserIDs); err != nil {
		return nil, s.fail(ctx, "AddMembers", err)
	}
	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, s.fail(ctx, "AddMembers", err)
	}
	return connect.NewResponse(&rpc.GroupResponse{Group: toGroup(group)}), nil
}

// RemoveMember removes a user from a group. Only the admin may remove members and
// the admin cannot be removed.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[rpc.RemoveMemberRequest]) (*connect.Response[rpc.GroupResponse], error) {
	s.logger.InfoContext(ctx, "RemoveMember request received", "group_id", req.Msg.GroupID, "user_id", req.Msg.UserID)

	group, err := s.memberGroup(ctx, req.Msg.GroupID, "remove members from")
	if err != nil {
		return nil, s.fail(ctx, "RemoveMember", err)
	}
	caller := session(ctx).UserID
	if !group.IsAdmin(caller) {
		return nil, s.fail(ctx, "RemoveMember", apperr.Permission(caller, "remove members from", "group "+group.ID))
	}
	if req.Msg.UserID == group.AdminID {
		return nil, s.fail(ctx, "RemoveMember", apperr.Validation("userId", "the group admin cannot be removed"))
	}
	if !slices.Contains(group.Members, req.Msg.UserID) {
		return nil, s.fail(ctx, "RemoveMember", apperr.NotFound("member", req.Msg.UserID))
	}
	if err := s.store.RemoveGroupMember(ctx, group.ID, req.Msg.UserID); err != nil {
		return nil, s.fail(ctx, "RemoveMember", err)
	}
	updated, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, s.fail(ctx, "RemoveMember", err)
	}
	return connect.NewResponse(&rpc.GroupResponse{Group: toGroup(updated)}), nil
}

func (s *GroupService) memberGroup(ctx context.Context, groupID, action string) (*models.Group, error) {
	caller := session(ctx).UserID
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(caller) {
		return nil, apperr.Permission(caller, action, "group "+groupID)
	}
	return group, nil
}
